package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/acc-projects/callcoach/internal/telephony"
)

const signatureHeader = "x-justcall-signature"

// maxWebhookBody bounds provider payloads; real deliveries are a few KB.
const maxWebhookBody = 1 << 20

// WebhookSink processes one raw webhook delivery against its signature.
type WebhookSink interface {
	HandleInbound(raw []byte, signatureHex string) error
}

func registerWebhookRoute(mux *http.ServeMux, sink WebhookSink) {
	mux.HandleFunc("POST /webhook", func(w http.ResponseWriter, r *http.Request) {
		// The exact raw bytes are what the provider signed; any
		// re-serialization would break verification.
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "read webhook body")
			return
		}

		if err := sink.HandleInbound(raw, r.Header.Get(signatureHeader)); err != nil {
			if errors.Is(err, telephony.ErrBadSignature) {
				writeJSONError(w, http.StatusUnauthorized, "Invalid signature")
				return
			}
			log.Printf("webhook processing error: %v", err)
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	})
}
