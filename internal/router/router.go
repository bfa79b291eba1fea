// Package router wires the HTTP API of the registration service:
// the static registration page, POST /register, POST /validate,
// GET /users, GET /test, GET /ping and GET /metrics.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/patric-chuzhbe/regform/internal/gzippedhttp"
	"github.com/patric-chuzhbe/regform/internal/logger"
	"github.com/patric-chuzhbe/regform/internal/models"
	"github.com/patric-chuzhbe/regform/internal/service"
	"github.com/patric-chuzhbe/regform/web"
)

const maxRequestBodyBytes = 100 << 10

var errTrailingData = errors.New("unexpected data after the JSON body")

type registrar interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.UserSummary, error)
	SuccessMessage() string
	Schema() models.Schema
}

type usersLister interface {
	ListUsers(ctx context.Context) ([]models.Record, error)
}

type formChecker interface {
	CheckForm(username, email, password string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type registrationService interface {
	registrar
	usersLister
	formChecker
	pinger
}

// Router holds the HTTP handlers of the service.
type Router struct {
	svc    registrationService
	static fs.FS
	now    func() time.Time
}

type initOptions struct {
	static         fs.FS
	metricsHandler http.Handler
	now            func() time.Time
}

// InitOption configures the router built by New.
type InitOption func(*initOptions)

// WithStatic serves the registration page from static instead of the embedded assets.
func WithStatic(static fs.FS) InitOption {
	return func(options *initOptions) {
		options.static = static
	}
}

// WithMetricsHandler mounts handler at GET /metrics.
func WithMetricsHandler(handler http.Handler) InitOption {
	return func(options *initOptions) {
		options.metricsHandler = handler
	}
}

// WithClock replaces time.Now as the source of GET /test timestamps.
func WithClock(now func() time.Time) InitOption {
	return func(options *initOptions) {
		options.now = now
	}
}

// New builds the chi router. GET /users and POST /validate are mounted
// only for the account schema.
func New(svc registrationService, optionsProto ...InitOption) *chi.Mux {
	options := &initOptions{
		static: web.Static(),
		now:    time.Now,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	myRouter := &Router{
		svc:    svc,
		static: options.static,
		now:    options.now,
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)

	registerChain := router.With(
		recoverWithJSON(http.StatusOK, service.MessageServerError),
		gzippedhttp.UngzipRequest(respondMalformedRequest),
	)
	registerChain.Post(`/register`, myRouter.PostRegister)

	if svc.Schema() == models.SchemaAccount {
		registerChain.Post(`/validate`, myRouter.PostValidate)
		router.With(
			recoverWithJSON(http.StatusInternalServerError, service.MessageUsersUnavailable),
			gzippedhttp.GzipResponse,
		).Get(`/users`, myRouter.GetUsers)
	}

	router.Get(`/test`, myRouter.GetTest)
	router.Get(`/ping`, myRouter.GetPing)

	if options.metricsHandler != nil {
		router.Method(http.MethodGet, `/metrics`, options.metricsHandler)
	}

	router.Get(`/`, myRouter.GetIndex)
	router.Get(`/*`, http.FileServer(http.FS(options.static)).ServeHTTP)

	return router
}

// PostRegister validates and stores a registration. Rejections are reported
// with HTTP 200 and success=false; only unparsable bodies get HTTP 400.
func (r *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	var req models.RegisterRequest
	if err := decodeRequest(response, request, &req); err != nil {
		respondMalformedRequest(response, request)
		return
	}

	summary, err := r.svc.Register(request.Context(), &req)
	if err != nil {
		message := service.Message(err)
		if message == service.MessageServerError {
			logger.Log.Errorln("registration failed", "error", err)
		}
		writeJSON(response, http.StatusOK, models.RegisterResponse{
			Success: false,
			Message: message,
		})
		return
	}

	result := models.RegisterResponse{
		Success: true,
		Message: r.svc.SuccessMessage(),
	}
	if r.svc.Schema() == models.SchemaAccount {
		result.User = summary
	}

	writeJSON(response, http.StatusOK, result)
}

// PostValidate runs the form rules against the payload and never stores anything.
func (r *Router) PostValidate(response http.ResponseWriter, request *http.Request) {
	var req models.RegisterRequest
	if err := decodeRequest(response, request, &req); err != nil {
		respondMalformedRequest(response, request)
		return
	}

	if err := r.svc.CheckForm(req.Username, req.Email, req.Password); err != nil {
		writeJSON(response, http.StatusOK, models.RegisterResponse{
			Success: false,
			Message: service.FormMessage(err),
		})
		return
	}

	writeJSON(response, http.StatusOK, models.RegisterResponse{
		Success: true,
		Message: service.MessageRegistered,
	})
}

// GetUsers lists every account without passwords.
func (r *Router) GetUsers(response http.ResponseWriter, request *http.Request) {
	users, err := r.svc.ListUsers(request.Context())
	if err != nil {
		logger.Log.Errorln("unable to list users", "error", err)
		writeJSON(response, http.StatusInternalServerError, models.StatusResponse{
			Success: false,
			Message: service.MessageUsersUnavailable,
		})
		return
	}

	writeJSON(response, http.StatusOK, models.UsersResponse{
		Success: true,
		Count:   len(users),
		Users:   users,
	})
}

// GetTest reports that the server is up.
func (r *Router) GetTest(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, models.StatusResponse{
		Success:   true,
		Message:   service.MessageServerOK,
		Timestamp: models.FormatTimestamp(r.now()),
	})
}

// GetPing checks the storage layer.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.svc.Ping(request.Context()); err != nil {
		logger.Log.Errorln("storage ping failed", "error", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetIndex serves the registration page of the configured schema.
func (r *Router) GetIndex(response http.ResponseWriter, request *http.Request) {
	page := web.AccountPage
	if r.svc.Schema() == models.SchemaContact {
		if _, err := fs.Stat(r.static, web.ContactPage); err == nil {
			page = web.ContactPage
		}
	}

	http.ServeFileFS(response, request, r.static, page)
}

func decodeRequest(response http.ResponseWriter, request *http.Request, target interface{}) error {
	request.Body = http.MaxBytesReader(response, request.Body, maxRequestBodyBytes)

	decoder := json.NewDecoder(request.Body)
	err := decoder.Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}

	return nil
}

func respondMalformedRequest(response http.ResponseWriter, _ *http.Request) {
	writeJSON(response, http.StatusBadRequest, models.RegisterResponse{
		Success: false,
		Message: service.MessageMalformedRequest,
	})
}

func writeJSON(response http.ResponseWriter, statusCode int, body interface{}) {
	response.Header().Set("Content-Type", "application/json; charset=utf-8")
	response.WriteHeader(statusCode)

	encoder := json.NewEncoder(response)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(body); err != nil {
		logger.Log.Errorln("unable to write response", "error", err)
	}
}

func recoverWithJSON(statusCode int, message string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Log.Errorln(
					"handler panic",
					"uri", request.RequestURI,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeJSON(response, statusCode, models.StatusResponse{
					Success: false,
					Message: message,
				})
			}()

			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}
