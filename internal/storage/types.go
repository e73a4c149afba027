package storage

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/danhigham/telequeue/internal/domain"
)

// DBConfig is the persisted form of domain.APIConfig.
type DBConfig struct {
	APIID   int    `msgpack:"apiId"`
	APIHash string `msgpack:"apiHash"`
	Test    bool   `msgpack:"test"`
}

func (c *DBConfig) MarshalBinary() (data []byte, err error) {
	type alias DBConfig
	return msgpack.Marshal((*alias)(c))
}

func (c *DBConfig) UnmarshalBinary(data []byte) error {
	type alias DBConfig
	return msgpack.Unmarshal(data, (*alias)(c))
}

func fromDomain(cfg domain.APIConfig) *DBConfig {
	return &DBConfig{APIID: cfg.APIID, APIHash: cfg.APIHash, Test: cfg.Test}
}

func (c *DBConfig) toDomain() domain.APIConfig {
	return domain.APIConfig{APIID: c.APIID, APIHash: c.APIHash, Test: c.Test}
}
