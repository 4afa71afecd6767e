package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// ErrSignUpUnsupported is returned when the phone number has no account yet.
var ErrSignUpUnsupported = errors.New("sign up is not supported, register the account with an official client first")

// Prompter asks the operator for one line of input.
type Prompter interface {
	Prompt(ctx context.Context, label string, secret bool) (string, error)
}

// Authenticator drives the user login flow, reading the code and password from a Prompter.
type Authenticator struct {
	phone  string
	prompt Prompter
}

func NewAuthenticator(phone string, prompt Prompter) *Authenticator {
	return &Authenticator{phone: phone, prompt: prompt}
}

func (a *Authenticator) Phone(context.Context) (string, error) {
	if strings.TrimSpace(a.phone) == "" {
		return "", errors.New("mobile number is empty")
	}
	return a.phone, nil
}

func (a *Authenticator) Code(ctx context.Context, sent *tg.AuthSentCode) (string, error) {
	label := "Enter the login code"
	if sent != nil {
		switch sent.Type.(type) {
		case *tg.AuthSentCodeTypeApp:
			label = "Enter the login code sent to your Telegram app"
		case *tg.AuthSentCodeTypeSMS:
			label = "Enter the login code sent by SMS"
		}
	}
	return a.ask(ctx, label, false)
}

func (a *Authenticator) Password(ctx context.Context) (string, error) {
	return a.ask(ctx, "Enter the two-step verification password", true)
}

func (a *Authenticator) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *Authenticator) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignUpUnsupported
}

func (a *Authenticator) ask(ctx context.Context, label string, secret bool) (string, error) {
	if a.prompt == nil {
		return "", fmt.Errorf("%s: no interactive prompt available", label)
	}
	value, err := a.prompt.Prompt(ctx, label, secret)
	if err != nil {
		return "", err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s: empty input", label)
	}
	return value, nil
}

var _ auth.UserAuthenticator = (*Authenticator)(nil)
