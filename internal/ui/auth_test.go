package ui

import (
	"testing"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/telequeue/internal/domain"
)

var enterKey = tea.KeyPressMsg{Code: tea.KeyEnter}

func TestAuthModel_SubmitCarriesStep(t *testing.T) {
	m := NewAuthModel().SetStep(domain.AuthStepCode, "")
	m.input.SetValue(" 12345 ")

	m, cmd := m.Update(enterKey)
	require.NotNil(t, cmd)
	assert.Equal(t, authSubmitMsg{step: domain.AuthStepCode, value: "12345"}, cmd())

	// A second Enter while the first is in flight does nothing.
	_, cmd = m.Update(enterKey)
	assert.Nil(t, cmd)

	m = m.Done()
	_, cmd = m.Update(enterKey)
	assert.NotNil(t, cmd)
}

func TestAuthModel_EmptyInputNotSubmitted(t *testing.T) {
	m := NewAuthModel()
	_, cmd := m.Update(enterKey)
	assert.Nil(t, cmd)
}

func TestAuthModel_StepChangeResetsInput(t *testing.T) {
	m := NewAuthModel()
	m.input.SetValue("+79991234567")

	m = m.SetStep(domain.AuthStepPhone, "bad phone")
	assert.Equal(t, "+79991234567", m.input.Value())
	assert.Equal(t, "bad phone", m.err)

	m = m.SetStep(domain.AuthStepPassword, "")
	assert.Empty(t, m.input.Value())
	assert.Equal(t, textinput.EchoPassword, m.input.EchoMode)
}

func TestAuthModel_PasswordIsNotTrimmed(t *testing.T) {
	m := NewAuthModel().SetStep(domain.AuthStepPassword, "")
	m.input.SetValue("  secret ")

	_, cmd := m.Update(enterKey)
	require.NotNil(t, cmd)
	assert.Equal(t, authSubmitMsg{step: domain.AuthStepPassword, value: "  secret "}, cmd())
}

func TestAuthModel_ConfigStepAsksForIDThenHash(t *testing.T) {
	m := NewAuthModel().SetConfigured(false)
	assert.Contains(t, m.prompt(), "API ID")

	m.input.SetValue("12x")
	m, cmd := m.Update(enterKey)
	assert.Nil(t, cmd)
	assert.Equal(t, "API ID must be a positive number", m.err)

	m.input.SetValue(" 123 ")
	m, cmd = m.Update(enterKey)
	assert.Nil(t, cmd)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.prompt(), "API hash")

	// Esc returns to the id.
	back, _ := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	assert.Contains(t, back.prompt(), "API ID")

	m.input.SetValue("abc")
	_, cmd = m.Update(enterKey)
	require.NotNil(t, cmd)
	assert.Equal(t, configSubmitMsg{cfg: domain.APIConfig{APIID: 123, APIHash: "abc"}}, cmd())
}

func TestAuthModel_StoredConfigSkipsConfigStep(t *testing.T) {
	m := NewAuthModel().SetConfigured(false).SetConfigured(true)
	m.input.SetValue("+79991234567")

	_, cmd := m.Update(enterKey)
	require.NotNil(t, cmd)
	assert.Equal(t, authSubmitMsg{step: domain.AuthStepPhone, value: "+79991234567"}, cmd())
}
