// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	"github.com/sirseerhq/opslevel-relay/internal/webhook"
)

func newWebhookServerCommand(a *app) *cobra.Command {
	var (
		addr         string
		extraHeaders []string
	)

	cmd := &cobra.Command{
		Use:   "webhook-server",
		Short: "Serve an endpoint that verifies OpsLevel webhook signatures",
		Long: `Listen for POST /webhook and check the X-OpsLevel-Signature header against
an HMAC-SHA256 of the signed headers and body, using OPSLEVEL_SIGNING_SECRET.

Verified payloads are printed to stdout, one per line, and answered with 200. Unsigned requests get
400 and bad signatures 403.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.cfg.Require(config.WebhookSigning)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Webhook.Addr
			}
			if len(extraHeaders) == 0 {
				extraHeaders = a.cfg.Webhook.ExtraHeaders
			}

			logger := a.logger.With().Str("command", cmd.Name()).Logger()
			srv := webhook.NewServer(logger, webhook.Config{
				Addr:         addr,
				Secret:       creds.SigningSecret,
				ExtraHeaders: extraHeaders,
				OnEvent:      printEvents(a.stdout),
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: :8080 or webhook.addr)")
	cmd.Flags().StringSliceVar(&extraHeaders, "sign-header", nil, "Additional header included in the signature")
	return cmd
}

// printEvents writes each verified body to w on its own line.
func printEvents(w io.Writer) webhook.Handler {
	var mu sync.Mutex
	return func(_ context.Context, _ http.Header, body []byte) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(w, "%s\n", bytes.TrimSpace(body))
		return err
	}
}
