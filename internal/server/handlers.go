package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/ajitpratap0/sfbridge/internal/broker"
	"github.com/ajitpratap0/sfbridge/pkg/auth"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/sfbridge/pkg/json"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	"github.com/gin-gonic/gin"
)

// Service is the broker surface the routes call
type Service interface {
	GetOAuthURL(redirectURI string) (string, error)
	ExchangeCode(ctx context.Context, redirectURI, code string) (*auth.TokenResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenResult, error)
	Describe(ctx context.Context, creds models.Credentials, object string) (*models.ObjectDescriptor, error)
	Extract(ctx context.Context, creds models.Credentials, object, from, to string) (*models.Page, error)
	ExtractNext(ctx context.Context, creds models.Credentials, cursor string) (*models.Page, error)
	LoadToWarehouse(ctx context.Context, creds models.Credentials, object, from, to string) (*broker.LoadSummary, error)
	Upload(ctx context.Context, creds models.Credentials, object string, records []models.Record) (*models.UploadResult, error)
}

func (s *Server) register(r *gin.Engine) {
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics))

	r.POST("/get_oauth_url", s.getOAuthURL)
	r.POST("/login_oauth_callback", s.loginOAuthCallback)
	r.POST("/get_new_access_token", s.getNewAccessToken)
	r.POST("/describe_object", s.describeObject)
	r.POST("/get_object_data", s.getObjectData)
	r.POST("/get_object_data_next", s.getObjectDataNext)
	r.POST("/save_object_data_to_bigquery", s.saveObjectDataToBigQuery)
	r.POST("/upload_object_data", s.uploadObjectData)
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.upstream != nil {
		body["upstream"] = s.upstream.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) getOAuthURL(c *gin.Context) {
	form, err := requireForm(c, "redirect_uri")
	if err != nil {
		fail(c, err)
		return
	}

	url, err := s.service.GetOAuthURL(form["redirect_uri"])
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"url": url})
}

func (s *Server) loginOAuthCallback(c *gin.Context) {
	form, err := requireForm(c, "redirect_uri", "authorization_code")
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	token, err := s.service.ExchangeCode(ctx, form["redirect_uri"], form["authorization_code"])
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, token)
}

func (s *Server) getNewAccessToken(c *gin.Context) {
	form, err := requireForm(c, "refresh_token")
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	token, err := s.service.Refresh(ctx, form["refresh_token"])
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, token)
}

func (s *Server) describeObject(c *gin.Context) {
	form, err := requireForm(c, "object_name")
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	desc, err := s.service.Describe(ctx, credentials(c), form["object_name"])
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, desc)
}

func (s *Server) getObjectData(c *gin.Context) {
	form, err := requireForm(c, "object_name")
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	page, err := s.service.Extract(ctx, credentials(c), form["object_name"], c.PostForm("from_date"), c.PostForm("to_date"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (s *Server) getObjectDataNext(c *gin.Context) {
	cursor := strings.TrimSpace(c.PostForm("next_records_url"))
	if cursor == "" {
		cursor = strings.TrimSpace(c.PostForm("cursor"))
	}
	if cursor == "" {
		fail(c, errors.New(errors.ErrorTypeValidation, "next_records_url is required"))
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	page, err := s.service.ExtractNext(ctx, credentials(c), cursor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (s *Server) saveObjectDataToBigQuery(c *gin.Context) {
	form, err := requireForm(c, "object_name")
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	summary, err := s.service.LoadToWarehouse(ctx, credentials(c), form["object_name"], c.PostForm("from_date"), c.PostForm("to_date"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}

func (s *Server) uploadObjectData(c *gin.Context) {
	form, err := requireForm(c, "object_name", "data")
	if err != nil {
		fail(c, err)
		return
	}

	var records []models.Record
	if err := jsonpool.Unmarshal([]byte(form["data"]), &records); err != nil {
		fail(c, errors.Wrap(err, errors.ErrorTypeValidation, "data must be a JSON array of records"))
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	result, err := s.service.Upload(ctx, credentials(c), form["object_name"], records)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

// upstreamContext detaches upstream work from client disconnects and bounds it
// by the configured request timeout.
func (s *Server) upstreamContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.config.RequestTimeout)
}

func credentials(c *gin.Context) models.Credentials {
	return models.Credentials{
		InstanceURL: strings.TrimSpace(c.PostForm("instance_url")),
		AccessToken: strings.TrimSpace(c.PostForm("access_token")),
	}
}

// requireForm reads the named form fields, failing on the first missing one
func requireForm(c *gin.Context, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, present := c.GetPostForm(name)
		if !present || strings.TrimSpace(v) == "" {
			return nil, errors.New(errors.ErrorTypeValidation, name+" is required").
				WithDetail("field", name)
		}
		values[name] = v
	}
	return values, nil
}
