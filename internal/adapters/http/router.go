package http

import (
	"context"
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Prompter/internal/adapters/signal"
	"github.com/dkeye/Prompter/internal/app/orch"
	"github.com/dkeye/Prompter/internal/config"
	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const clientTokenKey = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable client token to the browser session so
// reconnects from the same browser are recognizable in logs.
func ClientTokenMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				logger.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type statusResponse struct {
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	Connections int    `json:"connections"`
	Projects    int    `json:"projects"`
	Uptime      string `json:"uptime"`
}

type projectDetail struct {
	domain.Project
	Members []core.MemberDTO `json:"members"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, logger zerolog.Logger) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PrompterSessions", store))
	r.Use(ClientTokenMiddleware(logger))

	if cfg.StaticPath != "" {
		if _, err := os.Stat(cfg.StaticPath); err == nil {
			r.Static("/static", cfg.StaticPath)
			r.GET("/", func(c *gin.Context) {
				c.File(filepath.Join(cfg.StaticPath, "index.html"))
			})
		} else {
			logger.Warn().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("static path missing, not serving files")
		}
	}

	logger.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	started := time.Now()
	ctrl := signal.NewSignalWSController(o, cfg, logger)

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		logger.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/projects", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, o.Rooms.SnapshotAll())
	})

	api.GET("/projects/:id", func(c *gin.Context) {
		pid := domain.ProjectID(c.Param("id"))
		p, err := o.Rooms.Snapshot(pid)
		if err != nil {
			c.JSON(nethttp.StatusNotFound, orch.MapError(err))
			return
		}
		members := o.Rooms.MembersSnapshot(pid)
		if members == nil {
			members = []core.MemberDTO{}
		}
		c.JSON(nethttp.StatusOK, projectDetail{Project: p, Members: members})
	})

	api.GET("/status", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, statusResponse{
			Status:      "ok",
			Mode:        cfg.Mode,
			Connections: o.Registry.Count(),
			Projects:    o.Projects.Count(),
			Uptime:      time.Since(started).Round(time.Second).String(),
		})
	})

	return r
}
