package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/samcharles93/mlstm/internal/charset"
	"github.com/samcharles93/mlstm/internal/logger"
	"github.com/samcharles93/mlstm/internal/render"
	"github.com/samcharles93/mlstm/internal/tensor"
	"github.com/samcharles93/mlstm/internal/trace"
	"github.com/samcharles93/mlstm/internal/version"
	"github.com/samcharles93/mlstm/internal/webui"
)

var tracer = otel.Tracer("mlstm/api")

type Server struct {
	service *InferenceService
	log     logger.Logger
	clock   func() time.Time
}

func NewServer(service *InferenceService, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		service: service,
		log:     log,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/generate", s.handleGenerate)
	e.POST("/v1/render", s.handleRender)
	e.POST("/v1/trace", s.handleTrace)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/", echo.WrapHandler(webui.Handler()))
}

func (s *Server) handleGenerate(c *echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "api.generate")
	defer span.End()

	req, err := decodeBody[GenerateRequest](c.Request())
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	if c.QueryParam("stream") != "true" {
		sess, err := s.run(ctx, &req, nil)
		if err != nil {
			return s.writeRunError(c, span, err)
		}
		return writeValue(c, http.StatusOK, s.response(sess))
	}

	writer, err := NewSSEStreamWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	sess, err := s.run(ctx, &req, writer.EmitChar)
	if err != nil {
		if writer.Started() {
			s.log.Warn("stream aborted", "error", err)
			return writer.Failed(err.Error())
		}
		return s.writeRunError(c, span, err)
	}
	return writer.Complete(s.response(sess))
}

func (s *Server) handleRender(c *echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "api.render")
	defer span.End()

	req, err := decodeBody[GenerateRequest](c.Request())
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	sess, err := s.run(ctx, &req, nil)
	if err != nil {
		return s.writeRunError(c, span, err)
	}

	img := render.Draw(sess.Result.Glyphs(sess.NeuronRange), sess.Width)
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return s.writeRunError(c, span, err)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleTrace(c *echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "api.trace")
	defer span.End()

	req, err := decodeBody[GenerateRequest](c.Request())
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	sess, err := s.run(ctx, &req, nil)
	if err != nil {
		return s.writeRunError(c, span, err)
	}

	var buf bytes.Buffer
	if err := trace.WriteIPC(&buf, trace.FromResult(sess.Result)); err != nil {
		return s.writeRunError(c, span, err)
	}
	return c.Blob(http.StatusOK, trace.ContentType, buf.Bytes())
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeValue(c, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Resolve(),
		Model:   s.service.provider.Config(),
		Backend: tensor.Backend(),
	})
}

func (s *Server) run(ctx context.Context, req *GenerateRequest, stream func(string)) (*Session, error) {
	start := s.clock()
	sess, err := s.service.Run(ctx, req, stream)
	if err != nil {
		return nil, err
	}
	oteltrace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("steps", sess.Result.Stats.Steps),
		attribute.Int("width", sess.Width),
	)
	s.log.Debug("session complete",
		"steps", sess.Result.Stats.Steps,
		"generated", sess.Result.Stats.Generated,
		"elapsed", s.clock().Sub(start),
	)
	return sess, nil
}

func (s *Server) writeRunError(c *echo.Context, span oteltrace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, ErrBusy):
		return writeError(c, http.StatusServiceUnavailable, "server_busy", err.Error(), "", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return writeError(c, http.StatusServiceUnavailable, "canceled", err.Error(), "", "")
	default:
		s.log.Error("session failed", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
}

func (s *Server) response(sess *Session) GenerateResponse {
	res := sess.Result
	return GenerateResponse{
		ID:          newSessionID(),
		Object:      "generation",
		CreatedAt:   s.clock().Unix(),
		Text:        res.Text(),
		Seed:        charset.Decode(res.Seed),
		Generated:   res.GeneratedText(),
		Neuron:      res.Neuron,
		Activations: res.Activations,
		Stats: ResponseStats{
			Steps:       res.Stats.Steps,
			Generated:   res.Stats.Generated,
			DurationMS:  float64(res.Stats.Duration) / float64(time.Millisecond),
			CharsPerSec: res.Stats.CharsPerSec,
			MeanEntropy: res.Stats.MeanEntropy,
		},
	}
}
