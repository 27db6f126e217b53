package wanderbites

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/wanderbites/contact"
	"github.com/eringen/wanderbites/views"
)

const contactLimited = "Too many messages. Please try again later."

func (a *App) contactPage(c echo.Context) views.ContactPage {
	return views.ContactPage{
		Page: a.page(c, views.PageMeta{
			Title:       "Contact",
			Description: "Get in touch with the " + a.Config.Name + " team.",
		}),
	}
}

func (a *App) handleContact(c echo.Context) error {
	p := a.contactPage(c)
	if f, ok := popFlash(c); ok {
		p.Flash, p.FlashError = f.Message, f.IsError
	}
	return Render(c, a.Views.Contact(p))
}

// handleContactSubmit validates and sends a contact message. Invalid input
// re-renders the form with field errors; every other outcome redirects back
// with a flash message.
func (a *App) handleContactSubmit(c echo.Context) error {
	form := contact.Form{
		Name:    c.FormValue("name"),
		Email:   c.FormValue("email"),
		Message: c.FormValue("message"),
	}

	if err := form.Validate(); err != nil {
		a.Metrics.ContactSubmits.WithLabelValues("invalid").Inc()
		p := a.contactPage(c)
		p.Form = form.Trim()
		p.Errors = contact.FieldErrors(err)
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Contact(p))
	}

	// Only valid submissions count against the limit.
	if !a.contactLimiter.Allow(c.RealIP()) {
		a.Metrics.ContactSubmits.WithLabelValues("limited").Inc()
		return a.redirectWithFlash(c, flash{Message: contactLimited, IsError: true})
	}

	if err := a.mailer.Send(c.Request().Context(), contact.NewEmail(a.Config.Name, form)); err != nil {
		a.Metrics.ContactSubmits.WithLabelValues("failed").Inc()
		a.Log.Error().Err(err).Msg("contact form delivery failed")
		return a.redirectWithFlash(c, flash{Message: contact.FailedMessage, IsError: true})
	}
	a.Metrics.ContactSubmits.WithLabelValues("sent").Inc()
	return a.redirectWithFlash(c, flash{Message: contact.SentMessage})
}

func (a *App) redirectWithFlash(c echo.Context, f flash) error {
	if err := setFlash(c, f); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/contact/")
}
