package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"evidence-agent/internal/app/services"
	"evidence-agent/pkg/config"
	"evidence-agent/pkg/util"
)

func askCMD() *cobra.Command {
	var sessionID string
	var ask = &cobra.Command{
		Use:   "ask <question>",
		Short: "Stream one answer from the configured model to stdout as SSE frames",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is required")
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			openaiConf := config.GetOpenaiConf()
			chat := services.NewUpstreamClient(openaiConf)
			orchestrator := services.NewStreamOrchestrator(chat,
				services.PipelineOptions(openaiConf, config.GetStreamingConf(), chat)...)
			writer := util.NewSSEWriter(os.Stdout, util.SystemClock)
			return orchestrator.Run(context.Background(), question, sessionID, writer.WriteEvent)
		},
	}
	ask.Flags().StringVar(&sessionID, "session", "", "session id (default random uuid)")

	return ask
}
