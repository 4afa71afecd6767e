package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/require"
)

type scriptedPrompt struct {
	answers map[string]string
	secrets []bool
	err     error
}

func (p *scriptedPrompt) Prompt(_ context.Context, label string, secret bool) (string, error) {
	p.secrets = append(p.secrets, secret)
	if p.err != nil {
		return "", p.err
	}
	return p.answers[label], nil
}

func TestAuthenticatorPromptsForCodeAndPassword(t *testing.T) {
	prompt := &scriptedPrompt{answers: map[string]string{
		"Enter the login code sent to your Telegram app": " 12345 \n",
		"Enter the two-step verification password":       "hunter2",
	}}
	a := NewAuthenticator("+886900000000", prompt)
	ctx := context.Background()

	phone, err := a.Phone(ctx)
	require.NoError(t, err)
	require.Equal(t, "+886900000000", phone)

	code, err := a.Code(ctx, &tg.AuthSentCode{Type: &tg.AuthSentCodeTypeApp{Length: 5}})
	require.NoError(t, err)
	require.Equal(t, "12345", code)

	password, err := a.Password(ctx)
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)

	require.Equal(t, []bool{false, true}, prompt.secrets)
}

func TestAuthenticatorRejectsEmptyInput(t *testing.T) {
	a := NewAuthenticator("+1", &scriptedPrompt{})
	_, err := a.Code(context.Background(), nil)
	require.ErrorContains(t, err, "empty input")
}

func TestAuthenticatorPropagatesPromptError(t *testing.T) {
	boom := errors.New("closed")
	a := NewAuthenticator("+1", &scriptedPrompt{err: boom})
	_, err := a.Password(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestAuthenticatorRefusesSignUp(t *testing.T) {
	a := NewAuthenticator("", nil)

	_, err := a.Phone(context.Background())
	require.Error(t, err)

	_, err = a.SignUp(context.Background())
	require.ErrorIs(t, err, ErrSignUpUnsupported)

	var signUp *auth.SignUpRequired
	require.ErrorAs(t, a.AcceptTermsOfService(context.Background(), tg.HelpTermsOfService{}), &signUp)

	_, err = a.Code(context.Background(), nil)
	require.ErrorContains(t, err, "no interactive prompt")
}
