package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contactform/internal/challenge"
	"contactform/internal/config"
	"contactform/internal/domain"
	"contactform/internal/form"
	"contactform/internal/submission"
)

const successMessage = "¡Mensaje enviado exitosamente! Nos pondremos en contacto contigo pronto."

type sendOptions struct {
	endpoint    string
	token       string
	interactive bool
	timeout     time.Duration
	fields      domain.FormFields
}

var fieldLabels = map[domain.Field]string{
	domain.FieldName:        "Nombre",
	domain.FieldEmail:       "Email",
	domain.FieldPhone:       "Teléfono",
	domain.FieldCompany:     "Empresa/Negocio",
	domain.FieldServiceType: "Tipo de Servicio",
	domain.FieldMessage:     "Mensaje",
}

func newSendCmd(p prompter) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Validate and submit the contact form",
		Long: `Validates the six contact form fields and posts them, together with a
reCAPTCHA token, to the submission endpoint.

The endpoint defaults to PUBLIC_FIREBASE_FUNCTION_URL.

Example:
  contactctl send --name "Ana Pérez" --email ana@example.cl --phone "+56 9 1234 5678" \
    --company Acme --service-type Piscinero --message "Necesito una cotización" --token <token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.endpoint == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				opts.endpoint = cfg.Form.EndpointURL
				if opts.timeout == 0 {
					opts.timeout = cfg.Form.RequestTimeout
				}
			}
			client := submission.NewClient(opts.endpoint,
				submission.WithTimeout(opts.timeout),
				submission.WithLogger(logger.Named("submission")))
			return runSend(cmd.Context(), cmd.OutOrStdout(), p, client, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.fields.Name, "name", "", "full name")
	flags.StringVar(&opts.fields.Email, "email", "", "email address")
	flags.StringVar(&opts.fields.Phone, "phone", "", "phone number")
	flags.StringVar(&opts.fields.Company, "company", "", "company or business")
	flags.StringVar(&opts.fields.ServiceType, "service-type", "", "requested service")
	flags.StringVar(&opts.fields.Message, "message", "", "message body")
	flags.StringVar(&opts.token, "token", "", "reCAPTCHA verification token")
	flags.StringVar(&opts.endpoint, "endpoint", "", "submission endpoint URL")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout (0 keeps the transport default)")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "prompt for missing or invalid fields")
	return cmd
}

func runSend(ctx context.Context, out io.Writer, p prompter, endpoint submission.Endpoint, opts *sendOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	token := opts.token
	if token == "" && opts.interactive {
		var err error
		token, err = p.Secret("Token reCAPTCHA", "Resuelve el desafío en el sitio y pega aquí el token generado")
		if err != nil {
			return err
		}
	}

	controller := form.NewController(challenge.NewStatic(token), endpoint, form.WithLogger(logger.Named("contact")))
	defer controller.Close()

	for _, f := range domain.Fields {
		value := opts.fields.Get(f)
		if opts.interactive && form.Validate(f, value) != "" {
			var err error
			value, err = ask(p, f)
			if err != nil {
				return err
			}
		}
		if err := controller.Change(f, value); err != nil {
			return err
		}
		if err := controller.Blur(f, value); err != nil {
			return err
		}
	}

	err := controller.Submit(ctx)
	if err == nil {
		fmt.Fprintln(out, successMessage)
		return nil
	}

	var verr *form.ValidationError
	if errors.As(err, &verr) {
		for _, f := range domain.Fields {
			if msg, ok := verr.Errors[f]; ok {
				fmt.Fprintf(out, "%s: %s\n", fieldLabels[f], msg)
			}
		}
		return err
	}

	status := controller.Snapshot().Status
	fmt.Fprintln(out, status.Message)
	logger.Debug("submission failed", zap.Error(err))
	return err
}

func ask(p prompter, f domain.Field) (string, error) {
	validate := func(v string) string { return form.Validate(f, v) }
	switch f {
	case domain.FieldServiceType:
		return p.Select(fieldLabels[f], domain.ServiceTypes, validate)
	case domain.FieldMessage:
		return p.Multiline(fieldLabels[f], validate)
	}
	return p.Input(fieldLabels[f], "", validate)
}
