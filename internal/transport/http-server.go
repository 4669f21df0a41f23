package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/auth"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/config"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/db"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/metrics"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/service"
)

const (
	claimsKey      = "claims"
	userIDKey      = "userID"
	censoredValue  = "$censored"
	codeRateLimit  = "RATE_LIMITED"
	codeBadRequest = "VALIDATION"
)

// routes that need a bearer token, as "METHOD path"
var protectedRoutes = map[string]bool{
	"POST /auth/logout":              true,
	"GET /auth/profile":              true,
	"PUT /auth/profile":              true,
	"POST /jobs":                     true,
	"PUT /jobs/:id":                  true,
	"DELETE /jobs/:id":               true,
	"POST /bookmarks":                true,
	"GET /bookmarks":                 true,
	"POST /applications":             true,
	"GET /applications":              true,
	"DELETE /applications/:id":       true,
	"PATCH /applications/:id/status": true,
	"GET /recommendations":           true,
}

var censoredFields = []string{"password", "refreshToken", "accessToken"}

type (
	CustomValidator struct {
		validator *validator.Validate
	}

	envelope struct {
		Success    bool               `json:"success"`
		Data       interface{}        `json:"data,omitempty"`
		Pagination *models.Pagination `json:"pagination,omitempty"`
		Error      *errorBody         `json:"error,omitempty"`
	}

	errorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	LogoutReq struct {
		RefreshToken string `json:"refreshToken"`
	}

	Services struct {
		General      *service.General
		Postings     *service.Postings
		Query        *service.Query
		Recommender  *service.Recommender
		Bookmarks    *service.Bookmarks
		Applications *service.Applications
	}

	HTTPServer struct {
		Services
		metrics *metrics.Metrics
		logger  *zap.SugaredLogger
		echo    *echo.Echo
	}
)

func NewServices(
	g *service.General,
	p *service.Postings,
	q *service.Query,
	r *service.Recommender,
	b *service.Bookmarks,
	a *service.Applications,
) Services {
	return Services{
		General:      g,
		Postings:     p,
		Query:        q,
		Recommender:  r,
		Bookmarks:    b,
		Applications: a,
	}
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, svc Services, m *metrics.Metrics, logger *zap.SugaredLogger) *HTTPServer {
	instance := newServer(cfg, svc, m, logger)
	e := instance.echo

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.ListenAddr()); err != nil && err != http.ErrServerClosed {
					logger.Fatalw("shutting down the server", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return instance
}

func newServer(cfg *config.Config, svc Services, m *metrics.Metrics, logger *zap.SugaredLogger) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	instance := &HTTPServer{
		Services: svc,
		metrics:  m,
		logger:   logger,
		echo:     e,
	}

	authG := e.Group("/auth", middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit)),
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	}))
	authG.POST("/register", instance.Register)
	authG.POST("/login", instance.Login)
	authG.POST("/refresh", instance.Refresh)
	authG.POST("/logout", instance.Logout)
	authG.GET("/profile", instance.Profile)
	authG.PUT("/profile", instance.UpdateProfile)

	jobsG := e.Group("/jobs")
	jobsG.GET("", instance.JobList)
	jobsG.GET("/:id", instance.JobDetail)
	jobsG.POST("", instance.JobCreate)
	jobsG.PUT("/:id", instance.JobUpdate)
	jobsG.DELETE("/:id", instance.JobDelete)

	bookmarkG := e.Group("/bookmarks")
	bookmarkG.POST("", instance.BookmarkToggle)
	bookmarkG.GET("", instance.BookmarkList)

	applicationG := e.Group("/applications")
	applicationG.POST("", instance.ApplicationCreate)
	applicationG.GET("", instance.ApplicationList)
	applicationG.DELETE("/:id", instance.ApplicationCancel)
	applicationG.PATCH("/:id/status", instance.ApplicationSetStatus)

	recommendG := e.Group("/recommendations")
	recommendG.GET("", instance.RecommendPreferred)
	recommendG.GET("/popular", instance.RecommendPopular)
	recommendG.GET("/pay", instance.RecommendPay)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	e.Use(middleware.CORS())
	e.Use(instance.RequestLogger())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(c echo.Context) bool { return !cfg.LogDevelopment },
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			logger.Debugw("body dump", "path", c.Path(), "request", string(censorBody(reqBody)))
		},
	}))
	e.Use(middleware.Recover())
	e.Use(instance.MetricsMiddleware)

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = instance.ErrorHandler

	return instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := models.RegisterReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := s.General.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, userResp(user))
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := models.LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := s.General.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, tokenResp(pair))
}

func (s *HTTPServer) Refresh(c echo.Context) error {
	req := models.RefreshReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := s.General.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, tokenResp(pair))
}

func (s *HTTPServer) Logout(c echo.Context) error {
	claims, err := GetClaimsFromContext(c)
	if err != nil {
		return err
	}
	req := LogoutReq{}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.General.Logout(c.Request().Context(), claims, req.RefreshToken); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (s *HTTPServer) Profile(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	user, err := s.General.Profile(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, userResp(user))
}

func (s *HTTPServer) UpdateProfile(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	req := models.ProfileUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := s.General.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, userResp(user))
}

func (s *HTTPServer) JobList(c echo.Context) error {
	f := service.ListFilter{Page: 1}
	err := echo.QueryParamsBinder(c).
		Int("page", &f.Page).
		Uint64("location", &f.LocationID).
		Uint64("experience", &f.ExperienceID).
		Uint64("sector", &f.SectorID).
		String("keyword", &f.Keyword).
		String("company", &f.Company).
		String("sort", &f.Sort).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	postings, pagination, err := s.Query.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respondPage(c, postings, pagination)
}

func (s *HTTPServer) JobDetail(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	detail, err := s.Postings.Detail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, detail)
}

func (s *HTTPServer) JobCreate(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	req := models.PostingReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	detail, err := s.Postings.Create(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, detail)
}

func (s *HTTPServer) JobUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	req := models.PostingUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	detail, err := s.Postings.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, detail)
}

func (s *HTTPServer) JobDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := s.Postings.Delete(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]uint64{"id": id})
}

func (s *HTTPServer) BookmarkToggle(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	req := models.BookmarkReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	bookmarked, err := s.Bookmarks.Toggle(c.Request().Context(), userID, req.PostingID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, models.BookmarkToggleResp{
		PostingID:  req.PostingID,
		Bookmarked: bookmarked,
	})
}

func (s *HTTPServer) BookmarkList(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, err := GetPageParam(c)
	if err != nil {
		return err
	}

	bookmarks, pagination, err := s.Bookmarks.List(c.Request().Context(), userID, page)
	if err != nil {
		return err
	}
	return respondPage(c, bookmarks, pagination)
}

func (s *HTTPServer) ApplicationCreate(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	req := models.ApplicationReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	app, err := s.Applications.Apply(c.Request().Context(), userID, req.PostingID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, app)
}

func (s *HTTPServer) ApplicationList(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, err := GetPageParam(c)
	if err != nil {
		return err
	}

	apps, pagination, err := s.Applications.List(c.Request().Context(), userID, c.QueryParam("status"), page)
	if err != nil {
		return err
	}
	return respondPage(c, apps, pagination)
}

func (s *HTTPServer) ApplicationCancel(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	app, err := s.Applications.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, app)
}

func (s *HTTPServer) ApplicationSetStatus(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	req := models.ApplicationStatusReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	app, err := s.Applications.SetStatus(c.Request().Context(), userID, id, req.Status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, app)
}

func (s *HTTPServer) RecommendPreferred(c echo.Context) error {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, err := GetPageParam(c)
	if err != nil {
		return err
	}

	postings, pagination, err := s.Recommender.Preferred(c.Request().Context(), userID, page)
	if err != nil {
		return err
	}
	return respondPage(c, postings, pagination)
}

func (s *HTTPServer) RecommendPopular(c echo.Context) error {
	page, err := GetPageParam(c)
	if err != nil {
		return err
	}

	postings, pagination, err := s.Recommender.Popular(c.Request().Context(), page)
	if err != nil {
		return err
	}
	return respondPage(c, postings, pagination)
}

func (s *HTTPServer) RecommendPay(c echo.Context) error {
	page, err := GetPageParam(c)
	if err != nil {
		return err
	}

	postings, pagination, err := s.Recommender.BySalary(c.Request().Context(), page)
	if err != nil {
		return err
	}
	return respondPage(c, postings, pagination)
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !protectedRoutes[c.Request().Method+" "+c.Path()] {
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			return service.ErrInvalidToken
		}

		claims, err := s.General.Authenticate(c.Request().Context(), strings.TrimSpace(token))
		if err != nil {
			return err
		}
		userID, err := claims.UserID()
		if err != nil {
			return service.ErrInvalidToken
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func (s *HTTPServer) MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// commit the error response so its status is counted
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (s *HTTPServer) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogUserAgent: false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remoteIP", v.RemoteIP,
			}
			if v.Error != nil {
				s.logger.Warnw("request failed", append(fields, "err", v.Error)...)
				return nil
			}
			s.logger.Infow("request", fields...)
			return nil
		},
	})
}

// ErrorHandler writes every failure as an error envelope.
func (s *HTTPServer) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.errorResponse(err)
	if status == http.StatusInternalServerError {
		s.logger.Errorw("internal error", "method", c.Request().Method, "path", c.Path(), "err", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, envelope{Success: false, Error: &body})
	}
	if err != nil {
		s.logger.Errorw("write error response", "err", err)
	}
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:      http.StatusBadRequest,
	service.KindUnauthenticated: http.StatusUnauthorized,
	service.KindForbidden:       http.StatusForbidden,
	service.KindNotFound:        http.StatusNotFound,
	service.KindConflict:        http.StatusConflict,
	service.KindInternal:        http.StatusInternalServerError,
}

func (s *HTTPServer) errorResponse(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, errorBody{Code: httpErrorCode(he.Code), Message: msg}
	}

	kind := service.KindOf(err)
	return kindStatus[kind], errorBody{Code: kind.String(), Message: service.MessageOf(err)}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusUnauthorized:
		return service.KindUnauthenticated.String()
	case http.StatusForbidden:
		return service.KindForbidden.String()
	case http.StatusNotFound:
		return service.KindNotFound.String()
	case http.StatusTooManyRequests:
		return codeRateLimit
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetClaimsFromContext(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(claimsKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, service.ErrInvalidToken
	}
	return claims, nil
}

func GetUserIDFromContext(c echo.Context) (uint64, error) {
	userID, ok := c.Get(userIDKey).(uint64)
	if !ok {
		return 0, service.ErrInvalidToken
	}
	return userID, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil || vv == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}

// GetPageParam reads ?page, defaulting to the first page.
func GetPageParam(c echo.Context) (int, error) {
	page := 1
	if err := echo.QueryParamsBinder(c).Int("page", &page).BindError(); err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'page'")
	}
	return page, nil
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func respondPage(c echo.Context, data interface{}, p models.Pagination) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data, Pagination: &p})
}

func userResp(u *db.User) models.UserResp {
	return models.UserResp{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

func tokenResp(p *auth.TokenPair) models.TokenResp {
	return models.TokenResp{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
}

// censorBody masks credentials in a JSON object body. Anything else is returned as is.
func censorBody(body []byte) []byte {
	fields := map[string]interface{}{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	changed := false
	for _, key := range censoredFields {
		if _, ok := fields[key]; ok {
			fields[key] = censoredValue
			changed = true
		}
	}
	if !changed {
		return body
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}
