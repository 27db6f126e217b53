// Package contact validates contact form submissions and delivers them by
// email.
package contact

import (
	"errors"
	"html"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxMessageLen is the longest message accepted, in characters.
const MaxMessageLen = 5000

// Flash copy shown after a submission.
const (
	SentMessage   = "Thanks for reaching out! We'll get back to you soon."
	FailedMessage = "Failed to send message. Please try again later."
)

// Form is a contact form submission.
type Form struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Message string `form:"message" json:"message"`
}

// Trim returns f with surrounding whitespace removed from every field.
func (f Form) Trim() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate checks the trimmed form. The returned error is a
// validation.Errors keyed by the form field names.
func (f Form) Validate() error {
	f = f.Trim()
	return validation.Errors{
		"name": validation.Validate(f.Name,
			validation.Required.Error("Name is required."),
			validation.RuneLength(0, 200).Error("Name must be under 200 characters."),
		),
		"email": validation.Validate(f.Email,
			validation.Required.Error("Email is required."),
			is.EmailFormat.Error("Please enter a valid email address."),
		),
		"message": validation.Validate(f.Message,
			validation.Required.Error("Message is required."),
			validation.RuneLength(0, MaxMessageLen).Error("Message must be under 5000 characters."),
		),
	}.Filter()
}

// FieldErrors flattens a Validate error into field -> message. Errors that
// are not validation errors map to the empty key.
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	out := map[string]string{}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out[""] = err.Error()
		return out
	}
	for field, e := range verrs {
		out[field] = e.Error()
	}
	return out
}

// Email is an outgoing message built from a form.
type Email struct {
	Subject string
	ReplyTo string
	Text    string
	HTML    string
}

// NewEmail builds the notification for a submission. Field values are
// escaped in the HTML body.
func NewEmail(site string, f Form) Email {
	f = f.Trim()
	if site == "" {
		site = "Wanderbites"
	}
	text := strings.Join([]string{
		"New contact form submission from " + site,
		"",
		"Name: " + f.Name,
		"Email: " + f.Email,
		"",
		"Message:",
		f.Message,
	}, "\n")

	var b strings.Builder
	b.WriteString("<h2>New contact form submission from " + html.EscapeString(site) + "</h2>")
	b.WriteString("<p><strong>Name:</strong> " + html.EscapeString(f.Name) + "</p>")
	b.WriteString("<p><strong>Email:</strong> " + html.EscapeString(f.Email) + "</p>")
	b.WriteString("<p><strong>Message:</strong></p><p>")
	b.WriteString(strings.ReplaceAll(html.EscapeString(f.Message), "\n", "<br/>"))
	b.WriteString("</p>")

	return Email{
		Subject: site + " Contact: " + f.Name,
		ReplyTo: f.Email,
		Text:    text,
		HTML:    b.String(),
	}
}
