package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	mng "github.com/loykin/herdsman/internal/manager"
	"github.com/loykin/herdsman/internal/scanner"
)

// Router provides embeddable HTTP handlers for supervising profiles.
// Endpoints:
//   GET  {basePath}/profiles             list every profile with state
//   GET  {basePath}/profiles/one         query: key=...
//   POST {basePath}/rescan               rediscover the profile catalog
//   POST {basePath}/open                 query: key=...
//   POST {basePath}/kill                 query: key=...&force=1 (force optional)
//   POST {basePath}/restart              query: key=...
//   POST {basePath}/open-all             query: max=N (optional parallel bound)
//   POST {basePath}/kill-all
//   POST {basePath}/alias                query: key=...&name=... (empty name deletes)
//   POST {basePath}/identify             query: key=...
//   GET  {basePath}/scan                 current scan settings
//   PUT  {basePath}/scan                 body: Settings JSON
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	mgr      *mng.Manager
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/abc" results in /abc/profiles, /abc/open, ...
func NewRouter(mgr *mng.Manager, basePath string) *Router {
	bp := sanitizeBase(basePath)
	return &Router{mgr: mgr, basePath: bp}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/profiles", r.handleProfiles)
	group.GET("/profiles/one", r.handleProfile)
	group.POST("/rescan", r.handleRescan)
	group.POST("/open", r.handleOpen)
	group.POST("/kill", r.handleKill)
	group.POST("/restart", r.handleRestart)
	group.POST("/open-all", r.handleOpenAll)
	group.POST("/kill-all", r.handleKillAll)
	group.POST("/alias", r.handleAlias)
	group.POST("/identify", r.handleIdentify)
	group.GET("/scan", r.handleScanGet)
	group.PUT("/scan", r.handleScanPut)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down through the returned http.Server.
func NewServer(addr, basePath string, mgr *mng.Manager) (*http.Server, error) {
	r := NewRouter(mgr, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type countResp struct {
	OK       bool `json:"ok"`
	Profiles int  `json:"profiles"`
}

type aliasResp struct {
	OK    bool   `json:"ok"`
	Alias string `json:"alias,omitempty"`
}

func (r *Router) profileKey(c *gin.Context) (string, bool) {
	key := c.Query("key")
	if !isSafeKey(key) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "key query param must be a clean absolute path"})
		return "", false
	}
	return key, true
}

func (r *Router) handleProfiles(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.Profiles(c.Request.Context()))
}

func (r *Router) handleProfile(c *gin.Context) {
	key, ok := r.profileKey(c)
	if !ok {
		return
	}
	p, err := r.mgr.Profile(c.Request.Context(), key)
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (r *Router) handleRescan(c *gin.Context) {
	n, err := r.mgr.Rescan()
	if err != nil {
		writeJSON(c, http.StatusOK, countResp{OK: false, Profiles: n})
		return
	}
	writeJSON(c, http.StatusOK, countResp{OK: true, Profiles: n})
}

func (r *Router) handleOpen(c *gin.Context) {
	key, ok := r.profileKey(c)
	if !ok {
		return
	}
	res, err := r.mgr.Open(key)
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleKill(c *gin.Context) {
	key, ok := r.profileKey(c)
	if !ok {
		return
	}
	force := c.Query("force") == "1" || c.Query("force") == "true"
	res, err := r.mgr.Terminate(c.Request.Context(), key, force)
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleRestart(c *gin.Context) {
	key, ok := r.profileKey(c)
	if !ok {
		return
	}
	res, err := r.mgr.Restart(c.Request.Context(), key)
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleOpenAll(c *gin.Context) {
	max := 0
	if s := c.Query("max"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "max query param must be a positive integer"})
			return
		}
		max = n
	}
	writeJSON(c, http.StatusOK, r.mgr.OpenAll(c.Request.Context(), max))
}

func (r *Router) handleKillAll(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.KillAll(c.Request.Context()))
}

func (r *Router) handleAlias(c *gin.Context) {
	key, ok := r.profileKey(c)
	if !ok {
		return
	}
	name := c.Query("name")
	if err := r.mgr.SetAlias(c.Request.Context(), key, name); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, aliasResp{OK: true, Alias: name})
}

func (r *Router) handleIdentify(c *gin.Context) {
	key, ok := r.profileKey(c)
	if !ok {
		return
	}
	suggestion, err := r.mgr.Identify(c.Request.Context(), key)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, aliasResp{OK: true, Alias: suggestion})
}

func (r *Router) handleScanGet(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.ScanSettings())
}

type scanReq struct {
	Enabled    bool   `json:"enabled"`
	Interval   string `json:"interval"`
	NameFilter string `json:"name_filter"`
}

func (r *Router) handleScanPut(c *gin.Context) {
	var req scanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	s := scanner.Settings{Enabled: req.Enabled, NameFilter: req.NameFilter}
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid interval: " + err.Error()})
			return
		}
		s.Interval = d
	}
	s.Interval = scanner.ClampInterval(s.Interval)
	r.mgr.UpdateScan(s)
	writeJSON(c, http.StatusOK, r.mgr.ScanSettings())
}
