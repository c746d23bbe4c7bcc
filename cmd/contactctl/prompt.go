package main

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// errAborted is returned when the user interrupts a prompt
var errAborted = errors.New("aborted")

// validator returns a message describing why the answer is invalid, or "" when valid
type validator func(string) string

// prompter abstracts the terminal so the send flow can be tested without one
type prompter interface {
	Input(message, help string, validate validator) (string, error)
	Select(message string, options []string, validate validator) (string, error)
	Multiline(message string, validate validator) (string, error)
	Secret(message, help string) (string, error)
}

type surveyPrompter struct{}

func newSurveyPrompter() prompter {
	return surveyPrompter{}
}

func (surveyPrompter) Input(message, help string, validate validator) (string, error) {
	var out string
	prompt := &survey.Input{Message: message, Help: help}
	if err := survey.AskOne(prompt, &out, withValidator(validate)); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Select(message string, options []string, validate validator) (string, error) {
	var out string
	prompt := &survey.Select{Message: message, Options: options}
	if err := survey.AskOne(prompt, &out, withValidator(validate)); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Multiline(message string, validate validator) (string, error) {
	var out string
	prompt := &survey.Multiline{Message: message}
	if err := survey.AskOne(prompt, &out, withValidator(validate)); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Secret(message, help string) (string, error) {
	var out string
	prompt := &survey.Password{Message: message, Help: help}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func withValidator(validate validator) survey.AskOpt {
	return survey.WithValidator(func(ans interface{}) error {
		var value string
		switch v := ans.(type) {
		case string:
			value = v
		case survey.OptionAnswer:
			value = v.Value
		default:
			return fmt.Errorf("unexpected answer type %T", ans)
		}
		if msg := validate(value); msg != "" {
			return errors.New(msg)
		}
		return nil
	})
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}
