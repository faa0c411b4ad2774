package httpclient

import (
	nethttp "net/http"
)

// DefaultMaxPayloadLogBytes caps the response body preview emitted when
// payload logging is enabled.
const DefaultMaxPayloadLogBytes = 1024

// logRequest logs one outgoing attempt. Header values pass through the
// logger's sensitive-data filter, so credentials never reach the sink.
func (c *client) logRequest(httpReq *nethttp.Request, traceID string) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", traceID)

	if len(httpReq.Header) > 0 {
		logEvent.Int("header_count", len(httpReq.Header))
	}

	logEvent.Msg("REST client request")

	if c.config.LogPayloads {
		c.logger.Debug().
			Str("direction", "outbound").
			Str("method", httpReq.Method).
			Str("request_id", traceID).
			Interface("headers", httpReq.Header).
			Msg("REST client request")
	}
}

// logResponse logs a terminal response, either a success or the last HTTP
// failure of the call.
func (c *client) logResponse(resp *Response, traceID string) {
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Str("request_id", traceID).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount)

	if len(resp.Body) > 0 {
		logEvent.Int("body_size", len(resp.Body))
	}

	logEvent.Msg("REST client response")

	if c.config.LogPayloads {
		preview := resp.Body
		truncated := "false"
		if limit := c.maxPayloadLogBytes(); len(preview) > limit {
			preview = preview[:limit]
			truncated = "true"
		}

		c.logger.Debug().
			Str("direction", "inbound").
			Str("request_id", traceID).
			Int("status", resp.StatusCode).
			Interface("headers", resp.Headers).
			Int("body_size", len(resp.Body)).
			Str("body_truncated", truncated).
			Bytes("body_preview", preview).
			Msg("REST client response")
	}
}

func (c *client) maxPayloadLogBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return DefaultMaxPayloadLogBytes
}
