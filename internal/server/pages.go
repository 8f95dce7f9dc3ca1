package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/theme"
)

// contactData is what contact.html renders.
type contactData struct {
	contact.View
	AutoDismissMS int64
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Home page route
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Content": s.content,
			"Contact": s.contactData(s.forms.Draft()),
			"Theme":   theme.FromRequest(c.Request),
			"Year":    time.Now().Year(),
		})
	})

	// HTMX contact form endpoint - a fresh form view
	r.GET("/contact-form", func(c *gin.Context) {
		s.renderContact(c, http.StatusOK, s.forms.Draft())
	})

	// Current state of a view; a form waiting on the relay polls this.
	r.GET("/contact/:id", func(c *gin.Context) {
		view, err := s.forms.Peek(c.Param("id"))
		if err != nil {
			s.renderExpired(c, contact.Payload{})
			return
		}
		s.renderContact(c, http.StatusOK, view)
	})

	r.POST("/contact/:id", s.submitContact)

	// Dismiss only swaps the banner so whatever is typed in the inputs stays.
	r.DELETE("/contact/:id/status", func(c *gin.Context) {
		view := contact.View{ID: c.Param("id")}
		if form, err := s.forms.Get(view.ID); err == nil {
			form.Dismiss()
			view = form.View()
		}
		c.HTML(http.StatusOK, "contact-status", s.contactData(view))
	})

	r.POST("/theme", func(c *gin.Context) {
		mode := theme.FromRequest(c.Request).Toggle()
		http.SetCookie(c.Writer, mode.Cookie())
		if c.GetHeader("HX-Request") == "true" {
			c.Header("HX-Refresh", "true")
			c.Status(http.StatusNoContent)
			return
		}
		back := "/"
		if ref := c.Request.Referer(); ref != "" {
			back = ref
		}
		c.Redirect(http.StatusSeeOther, back)
	})

	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title": "Privacy Policy",
		})
	})
}

func (s *Server) submitContact(c *gin.Context) {
	id := c.Param("id")
	var p contact.Payload
	if err := c.ShouldBind(&p); err != nil {
		view, perr := s.forms.Peek(id)
		if perr != nil {
			s.renderExpired(c, p)
			return
		}
		view.Values = p
		view.Missing = p.Missing()
		if len(view.Missing) == 0 {
			c.String(http.StatusBadRequest, "invalid form submission")
			return
		}
		s.renderContact(c, http.StatusUnprocessableEntity, view)
		return
	}

	form, err := s.forms.Acquire(id)
	switch {
	case errors.Is(err, contact.ErrFull):
		s.log.Warn("contact forms at capacity", zap.Int("open", s.forms.Len()))
		s.renderContact(c, http.StatusServiceUnavailable, contact.View{
			ID:      id,
			Phase:   contact.Failed,
			Message: contact.MsgFallbackFailed,
			Values:  p,
		})
		return
	case err != nil:
		s.renderExpired(c, p)
		return
	}

	view, err := form.Submit(c.Request.Context(), p)
	var incomplete *contact.IncompleteError
	switch {
	case err == nil:
		s.recordSubmission(view)
		s.renderContact(c, http.StatusOK, view)
	case errors.Is(err, contact.ErrInFlight):
		s.renderContact(c, http.StatusConflict, view)
	case errors.As(err, &incomplete):
		view.Missing = incomplete.Missing
		s.renderContact(c, http.StatusUnprocessableEntity, view)
	case errors.Is(err, contact.ErrClosed):
		s.forms.Release(form.ID())
		s.renderExpired(c, p)
	default:
		s.log.Error("contact submit", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
	}
}

// renderExpired answers a malformed or torn down view with a 404 and a new
// draft that keeps whatever the visitor typed.
func (s *Server) renderExpired(c *gin.Context, typed contact.Payload) {
	view := s.forms.Draft()
	view.Values = typed
	s.renderContact(c, http.StatusNotFound, view)
}

func (s *Server) renderContact(c *gin.Context, status int, view contact.View) {
	c.HTML(status, "contact.html", s.contactData(view))
}

func (s *Server) contactData(view contact.View) contactData {
	return contactData{View: view, AutoDismissMS: s.cfg.Contact.AutoDismiss.Milliseconds()}
}

func (s *Server) recordSubmission(view contact.View) {
	if s.store == nil {
		return
	}
	outcome, fields := view.Phase.String(), len(view.FieldErrors)
	s.goBackground(func(ctx context.Context) {
		if err := s.store.RecordSubmission(ctx, outcome, fields); err != nil {
			s.log.Error("recording submission", zap.Error(err))
		}
	})
}
