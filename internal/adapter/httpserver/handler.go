package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nolancloud/ncp/internal/auth"
	"github.com/nolancloud/ncp/internal/domain"
	"github.com/nolancloud/ncp/internal/usecase/lifecycle"
	storageuc "github.com/nolancloud/ncp/internal/usecase/storage"
)

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type createContainerRequest struct {
	Image string   `json:"image"`
	Name  string   `json:"name"`
	Cmd   []string `json:"cmd"`
}

type createBucketRequest struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

type presignRequest struct {
	ExpirySeconds int `json:"expiry_seconds"`
}

type presignResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type API struct {
	accounts   *auth.AccountService
	resolver   auth.Resolver
	containers *lifecycle.Service
	storage    *storageuc.Service
}

func NewAPI(accounts *auth.AccountService, resolver auth.Resolver, containers *lifecycle.Service, storage *storageuc.Service) *API {
	return &API{accounts: accounts, resolver: resolver, containers: containers, storage: storage}
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/ping", a.ping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/auth/signup", a.signup)
	router.POST("/auth/login", a.login)

	// Downloads run with optional identity so public objects and
	// capability tokens work without credentials.
	router.GET("/storage/buckets/:bucket/objects/:key", optionalIdentity(a.resolver), a.downloadObject)

	authed := router.Group("/", requireIdentity(a.resolver))
	authed.POST("/auth/apikeys", a.createAPIKey)

	authed.GET("/containers", a.listContainers)
	authed.POST("/containers", a.createContainer)
	authed.POST("/containers/:id/start", a.startContainer)
	authed.POST("/containers/:id/stop", a.stopContainer)
	authed.POST("/containers/:id/restart", a.restartContainer)
	authed.GET("/containers/:id/stats", a.containerStats)
	authed.DELETE("/containers/:id", a.removeContainer)

	authed.GET("/storage/buckets", a.listBuckets)
	authed.POST("/storage/buckets", a.createBucket)
	authed.DELETE("/storage/buckets/:bucket", a.deleteBucket)
	authed.PUT("/storage/buckets/:bucket/objects/:key", a.putObject)
	authed.DELETE("/storage/buckets/:bucket/objects/:key", a.deleteObject)
	authed.POST("/storage/buckets/:bucket/objects/:key/presign", a.presignObject)
}

func (a *API) ping(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	user, token, err := a.accounts.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, response{Ok: true, Data: sessionResponse{User: user, Token: token}})
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	user, token, err := a.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials read as 401 to the caller, not 403.
		c.JSON(http.StatusUnauthorized, response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: sessionResponse{User: user, Token: token}})
}

func (a *API) createAPIKey(c *gin.Context) {
	key, err := a.accounts.CreateAPIKey(c.Request.Context(), requester(c).UserID)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, response{Ok: true, Data: key})
}

func (a *API) listContainers(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	list, err := a.containers.List(c.Request.Context(), requester(c).UserID, all)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: list})
}

func (a *API) createContainer(c *gin.Context) {
	var req createContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	inst, err := a.containers.Create(c.Request.Context(), requester(c).UserID, lifecycle.CreateInput{
		Image: req.Image,
		Name:  req.Name,
		Cmd:   req.Cmd,
	})
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, response{Ok: true, Data: inst})
}

func (a *API) startContainer(c *gin.Context) {
	a.containerCommand(c, a.containers.Start)
}

func (a *API) stopContainer(c *gin.Context) {
	a.containerCommand(c, a.containers.Stop)
}

func (a *API) restartContainer(c *gin.Context) {
	a.containerCommand(c, a.containers.Restart)
}

func (a *API) containerCommand(c *gin.Context, run func(ctx context.Context, userID, id string) error) {
	if err := run(c.Request.Context(), requester(c).UserID, c.Param("id")); err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) containerStats(c *gin.Context) {
	stats, err := a.containers.Stats(c.Request.Context(), requester(c).UserID, c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", stats)
}

func (a *API) removeContainer(c *gin.Context) {
	force, _ := strconv.ParseBool(c.Query("force"))
	if err := a.containers.Remove(c.Request.Context(), requester(c).UserID, c.Param("id"), force); err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) listBuckets(c *gin.Context) {
	buckets, err := a.storage.ListBuckets(c.Request.Context(), requester(c).UserID)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: buckets})
}

func (a *API) createBucket(c *gin.Context) {
	var req createBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	bucket, err := a.storage.CreateBucket(c.Request.Context(), requester(c).UserID, req.Name, req.Public)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, response{Ok: true, Data: bucket})
}

func (a *API) deleteBucket(c *gin.Context) {
	if err := a.storage.DeleteBucket(c.Request.Context(), requester(c).UserID, c.Param("bucket")); err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) putObject(c *gin.Context) {
	public, _ := strconv.ParseBool(c.Query("public"))
	obj, err := a.storage.PutObject(
		c.Request.Context(),
		requester(c).UserID,
		c.Param("bucket"),
		c.Param("key"),
		c.ContentType(),
		c.Request.Body,
		public,
	)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, response{Ok: true, Data: obj})
}

func (a *API) deleteObject(c *gin.Context) {
	if err := a.storage.DeleteObject(c.Request.Context(), requester(c).UserID, c.Param("bucket"), c.Param("key")); err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) downloadObject(c *gin.Context) {
	obj, rc, err := a.storage.Open(
		c.Request.Context(),
		maybeRequester(c),
		c.Param("bucket"),
		c.Param("key"),
		c.Query("token"),
	)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + obj.Key + `"`,
	})
}

func (a *API) presignObject(c *gin.Context) {
	var req presignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
			return
		}
	}

	url, expiry, err := a.storage.Presign(
		c.Request.Context(),
		requester(c).UserID,
		c.Param("bucket"),
		c.Param("key"),
		time.Duration(req.ExpirySeconds)*time.Second,
	)
	if err != nil {
		c.JSON(statusFor(err), response{Ok: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: presignResponse{URL: url, ExpiresAt: expiry}})
}

// requester returns the identity set by requireIdentity. Handlers behind
// the authed group can rely on it being present.
func requester(c *gin.Context) *domain.Identity {
	return c.MustGet(identityKey).(*domain.Identity)
}

func maybeRequester(c *gin.Context) *domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		return v.(*domain.Identity)
	}
	return nil
}
