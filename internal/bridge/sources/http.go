package sources

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"sensor-bridge/internal/bridge/pipeline"
	"sensor-bridge/internal/infra/httpserver"

	"go.opentelemetry.io/otel/attribute"
)

const (
	MaxPayloadBytes = 8 << 20

	readPayloadErrMessage = "failed to read payload"
	enqueueErrMessage     = "failed to enqueue payload"
)

// Offerer accepts raw payloads for a running pipeline.
type Offerer interface {
	Offer(context.Context, []byte) error
}

func NewRaritanController(target Offerer) *RaritanController {
	return &RaritanController{target: target}
}

var _ httpserver.Controller = &RaritanController{}

// RaritanController receives Raritan JSON exports pushed over HTTP.
type RaritanController struct {
	target Offerer
}

func (c *RaritanController) AddRoutes(router *http.ServeMux) {
	router.Handle("POST /raritan", c.ingest())
}

func (c *RaritanController) ingest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		span := httpserver.GetSpanFromContext(r)

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpserver.ReplyWithError(w, http.StatusRequestEntityTooLarge, readPayloadErrMessage)
				return
			}
			httpserver.ReplyWithError(w, http.StatusBadRequest, readPayloadErrMessage)
			return
		}
		if len(payload) == 0 {
			httpserver.ReplyWithError(w, http.StatusBadRequest, "empty payload")
			return
		}
		span.SetAttributes(attribute.Int("raritan.payload_bytes", len(payload)))

		err = c.target.Offer(r.Context(), payload)
		switch {
		case err == nil:
			httpserver.ReplyJSONResponse(w, http.StatusAccepted, nil)
		case errors.Is(err, pipeline.ErrTerminating):
			httpserver.ReplyWithError(w, http.StatusServiceUnavailable, err.Error())
		default:
			slog.Error("enqueueing raritan payload", slog.Any("error", err))
			httpserver.ReplyWithError(w, http.StatusServiceUnavailable, enqueueErrMessage)
		}
	}
}
