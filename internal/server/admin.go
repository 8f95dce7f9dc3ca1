package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/store"
)

const adminCookie = "admin_token"

// adminCredentials returns the configured login. Without one, debug builds
// fall back to a development login and release builds refuse every login.
func (s *Server) adminCredentials() (string, string, bool) {
	user, pass := s.cfg.Admin.Username, s.cfg.Admin.Password
	if user != "" && pass != "" {
		return user, pass, true
	}
	if gin.Mode() == gin.DebugMode {
		s.log.Warn("using default admin login; set ADMIN_USERNAME and ADMIN_PASSWORD")
		return "admin", "admin123", true
	}
	return "", "", false
}

// rotateAdminToken replaces the session token, logging out any holder of the
// previous one.
func (s *Server) rotateAdminToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	s.adminMu.Lock()
	s.adminToken = token
	s.adminMu.Unlock()
	return token, nil
}

func (s *Server) revokeAdminToken() {
	s.adminMu.Lock()
	s.adminToken = ""
	s.adminMu.Unlock()
}

func (s *Server) validAdminToken(token string) bool {
	s.adminMu.Lock()
	current := s.adminToken
	s.adminMu.Unlock()
	return current != "" && subtle.ConstantTimeCompare([]byte(token), []byte(current)) == 1
}

func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || !s.validAdminToken(token) {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) adminRoutes() {
	r := s.engine

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		user, pass, enabled := s.adminCredentials()
		okUser := subtle.ConstantTimeCompare([]byte(c.PostForm("username")), []byte(user)) == 1
		okPass := subtle.ConstantTimeCompare([]byte(c.PostForm("password")), []byte(pass)) == 1

		if enabled && okUser && okPass {
			token, err := s.rotateAdminToken()
			if err != nil {
				s.log.Error("generate admin token", zap.Error(err))
				c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Login failed"})
				return
			}
			c.SetCookie(adminCookie, token, 3600*24, "/admin", "", false, true)
			s.log.Info("admin login", zap.String("visitor", s.visitorID(c)))
			c.Redirect(http.StatusFound, "/admin/dashboard")
			return
		}
		s.log.Warn("failed admin login", zap.String("visitor", s.visitorID(c)))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"error": "Invalid credentials",
		})
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		if token, err := c.Cookie(adminCookie); err == nil && s.validAdminToken(token) {
			s.revokeAdminToken()
		}
		c.SetCookie(adminCookie, "", -1, "/admin", "", false, true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin")
	admin.Use(s.adminAuth())

	admin.GET("/dashboard", func(c *gin.Context) {
		stats, ok := s.stats(c)
		if !ok {
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":     stats,
			"openForms": s.forms.Len(),
		})
	})

	admin.GET("/api/stats", func(c *gin.Context) {
		stats, ok := s.stats(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	admin.GET("/visitors", func(c *gin.Context) {
		if s.store == nil {
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Metrics are disabled"})
			return
		}
		visitors, err := s.store.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			s.log.Error("loading visitors", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{
			"visitors": visitors,
		})
	})

	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		if s.store == nil {
			c.JSON(http.StatusOK, gin.H{"removed": 0})
			return
		}
		n, err := s.store.Cleanup(c.Request.Context(), store.Retention)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		stats, ok := s.stats(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		c.JSON(http.StatusOK, stats)
	})
}

func (s *Server) stats(c *gin.Context) (*store.Stats, bool) {
	if s.store == nil {
		return nil, false
	}
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.log.Error("loading admin stats", zap.Error(err))
		return nil, false
	}
	return stats, true
}

func (s *Server) visitorID(c *gin.Context) string {
	if s.store == nil {
		return ""
	}
	return s.store.HashIP(c.ClientIP())
}
