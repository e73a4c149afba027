package chats

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/danhigham/telequeue/internal/domain"
)

var (
	numericIDPattern = regexp.MustCompile(`^\d+$`)
	usernamePattern  = regexp.MustCompile(`^@?[a-zA-Z0-9_]{5,}$`)
	phonePattern     = regexp.MustCompile(`^\+?\d[\d\s\-()]{4,}$`)
)

// ParseContactQuery reads free text typed into the go-to-contact prompt.
// Digits only is a user id, a name of five or more word characters is a
// username and anything phone shaped is a phone number.
func ParseContactQuery(text string) (domain.ContactQuery, error) {
	v := strings.TrimSpace(text)
	switch {
	case numericIDPattern.MatchString(v):
		id, err := strconv.ParseInt(v, 10, 64)
		if err == nil && id > 0 {
			return domain.ContactQuery{UserID: id}, nil
		}
	case usernamePattern.MatchString(v):
		return domain.ContactQuery{Username: "@" + strings.TrimPrefix(v, "@")}, nil
	case phonePattern.MatchString(v):
		return domain.ContactQuery{Phone: v}, nil
	}
	return domain.ContactQuery{}, &domain.ValidationError{Field: "contact", Message: "enter a user id, phone number or username"}
}
