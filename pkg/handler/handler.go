// Package handler exposes the HTTP trigger and the OAuth credential flow.
// The sync engine itself never schedules or authorizes anything, it only
// reacts to these endpoints.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/rdnply/matchsync/pkg/ledger"
	"github.com/rdnply/matchsync/pkg/model"
)

const stateKey = "state"

type syncService interface {
	Run(ctx context.Context) (*model.SyncResult, error)
}

type Opts struct {
	// APIKey is the shared secret required to trigger a sync pass.
	// Empty means unauthenticated triggers are allowed.
	APIKey string
	// CookieSecret signs the session cookie carrying the OAuth state
	CookieSecret string
}

type handler struct {
	syncer  syncService
	storage ledger.Storage
	oauth2  oauth2.Config
	apiKey  string
}

func New(syncer syncService, storage ledger.Storage, authConfig oauth2.Config, opts Opts) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(opts.CookieSecret))
	r.Use(sessions.Sessions("matchsync", store))

	h := handler{
		syncer:  syncer,
		storage: storage,
		oauth2:  authConfig,
		apiKey:  opts.APIKey,
	}

	r.GET("/ping", h.ping)
	r.POST("/sync", h.sync)
	r.GET("/oauth/login", h.login)
	r.GET("/oauth/callback", h.callback)

	return r
}

func (h handler) ping(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h handler) sync(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	result, err := h.syncer.Run(c.Request.Context())

	switch errors.Cause(err) {
	case nil:
	case model.ErrSyncInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case model.ErrMissingCredential:
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(internalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"created_count": len(result.Created),
		"created":       result.Created,
		"skipped":       result.Skipped,
		"failed":        result.Failed,
	})
}

func (h handler) authorized(c *gin.Context) bool {
	if h.apiKey == "" {
		return true
	}

	key := c.GetHeader("X-Api-Key")
	if key == "" {
		key = c.Query("key")
	}

	return key == h.apiKey
}

func (h handler) login(c *gin.Context) {
	state, err := setState(c)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	// Offline access, so Google issues a refresh token we can store
	authURL := h.oauth2.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.Redirect(http.StatusFound, authURL)
}

func (h handler) callback(c *gin.Context) {
	// Validate session state
	if getState(c) != c.Query("state") {
		c.String(http.StatusUnauthorized, "invalid state")
		return
	}

	// Exchange code with tokens
	token, err := h.oauth2.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if token.RefreshToken == "" {
		// Google returns a refresh token on the first consent only. When
		// one is already stored, keep using it.
		existing, err := h.storage.GetCredential(c.Request.Context())
		if err == nil && existing != "" {
			c.String(http.StatusOK, "authorization refreshed, existing credential kept")
			return
		}

		c.String(http.StatusBadRequest, "no refresh token granted, revoke the app's access and try again")
		return
	}

	if err := h.storage.SetCredential(c.Request.Context(), token.RefreshToken); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	log.Info("stored new publisher credential")
	c.String(http.StatusOK, "authorization complete, sync can publish now")
}

func setState(c *gin.Context) (string, error) {
	s := sessions.Default(c)
	state := randToken()
	s.Set(stateKey, state)
	return state, s.Save()
}

func getState(c *gin.Context) interface{} {
	s := sessions.Default(c)
	return s.Get(stateKey)
}

func randToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.StdEncoding.EncodeToString(b)
}

func internalError(err error) (int, interface{}) {
	return http.StatusInternalServerError, gin.H{"error": err.Error()}
}
