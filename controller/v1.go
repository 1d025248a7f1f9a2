// Package controller wires HTTP handlers onto the core packages: decode a
// client body into an adapt.Request, resolve auth, dispatch through route,
// and write back the adapt.Response (§6, §5.9 expansion).
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/common"
	"github.com/relayforge/gateway/middleware"
	"github.com/relayforge/gateway/route"
)

// Client bundles what every v1 handler needs: the Dispatcher routing to
// per-model workers.
type Client struct {
	Dispatcher route.Dispatcher
}

// handle decodes body as t, looks up the caller's Principal, routes the
// request, and writes the adapter's JSON response. Shared by every
// single-shot (non-multipart) v1 endpoint.
func (cl *Client) handle(t adapt.RequestType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.PrincipalFromContext(c)
		if !ok {
			middleware.AbortWithError(c, apierr.New(apierr.InternalError, "principal missing from context"))
			return
		}

		body, err := common.GetRequestBody(c)
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "read request body"))
			return
		}

		req, err := adapt.DecodeRequest(t, body)
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "decode request body"))
			return
		}

		resp, err := route.Route(c.Request.Context(), cl.Dispatcher, p, req)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// ChatCompletions handles POST /v1/chat/completions.
func (cl *Client) ChatCompletions() gin.HandlerFunc { return cl.handle(adapt.TextChat) }

// Completions handles POST /v1/completions.
func (cl *Client) Completions() gin.HandlerFunc { return cl.handle(adapt.TextCompletion) }

// Edits handles POST /v1/edits.
func (cl *Client) Edits() gin.HandlerFunc { return cl.handle(adapt.TextEdit) }

// Embeddings handles POST /v1/embeddings.
func (cl *Client) Embeddings() gin.HandlerFunc { return cl.handle(adapt.TextEmbedding) }

// Moderations handles POST /v1/moderations.
func (cl *Client) Moderations() gin.HandlerFunc { return cl.handle(adapt.TextModeration) }

// ImageGenerations handles POST /v1/images/generations.
func (cl *Client) ImageGenerations() gin.HandlerFunc { return cl.handle(adapt.ImageGeneration) }

// AudioSpeech handles POST /v1/audio/speech.
func (cl *Client) AudioSpeech() gin.HandlerFunc { return cl.handle(adapt.AudioTTS) }

// multipartHandle implements §5.9's multipart fold: non-file form fields are
// re-encoded to JSON bytes (the shape adapt.DecodeRequest already expects);
// fieldSetter validates the file fields and adds nothing to that JSON.
func (cl *Client) multipartHandle(t adapt.RequestType, fieldSetter func(*gin.Context, map[string]any) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.PrincipalFromContext(c)
		if !ok {
			middleware.AbortWithError(c, apierr.New(apierr.InternalError, "principal missing from context"))
			return
		}

		if err := c.Request.ParseMultipartForm(int64(32) << 20); err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "parse multipart form"))
			return
		}

		fields := map[string]any{}
		for key, values := range c.Request.MultipartForm.Value {
			if len(values) == 1 {
				fields[key] = values[0]
			} else {
				fields[key] = values
			}
		}

		if fieldSetter != nil {
			if err := fieldSetter(c, fields); err != nil {
				middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "read multipart file field"))
				return
			}
		}

		body, err := json.Marshal(fields)
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.InternalError, err, "encode multipart fields"))
			return
		}

		req, err := adapt.DecodeRequest(t, body)
		if err != nil {
			middleware.AbortWithError(c, apierr.Wrap(apierr.BadRequest, err, "decode request body"))
			return
		}

		resp, err := route.Route(c.Request.Context(), cl.Dispatcher, p, req)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ImageEdits handles POST /v1/images/edits (multipart: image, mask, prompt...).
func (cl *Client) ImageEdits() gin.HandlerFunc {
	return cl.multipartHandle(adapt.ImageEdit, readImageFields("image", "mask"))
}

// ImageVariations handles POST /v1/images/variations (multipart: image).
func (cl *Client) ImageVariations() gin.HandlerFunc {
	return cl.multipartHandle(adapt.ImageVariation, readImageFields("image"))
}

// AudioTranscriptions handles POST /v1/audio/transcriptions (multipart: file).
func (cl *Client) AudioTranscriptions() gin.HandlerFunc {
	return cl.multipartHandle(adapt.AudioTranscription, readAudioField("file"))
}

// AudioTranslations handles POST /v1/audio/translations (multipart: file).
func (cl *Client) AudioTranslations() gin.HandlerFunc {
	return cl.multipartHandle(adapt.AudioTranslation, readAudioField("file"))
}
