package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const checkQuestion = "25岁健康女性种植牙，刚做完植入种植体，请问手术后是否需要服用抗生素"

func checkCMD() *cobra.Command {
	var addr string
	var question string
	var check = &cobra.Command{
		Use:   "check",
		Short: "Smoke-test a running server: health, model status and one streamed question",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := req.C().SetBaseURL(strings.TrimRight(addr, "/")).SetTimeout(3 * time.Minute)
			out := cmd.OutOrStdout()

			resp, err := client.R().Get("/health")
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			fmt.Fprintf(out, "health: %d %s\n", resp.StatusCode, resp.String())

			resp, err = client.R().Get("/api/model/status")
			if err != nil {
				return fmt.Errorf("model status: %w", err)
			}
			fmt.Fprintf(out, "model status: %d %s\n", resp.StatusCode, resp.String())

			resp, err = client.R().
				SetBody(map[string]string{"question": question, "userId": "check"}).
				DisableAutoReadResponse().
				Post("/api/ask")
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer resp.Body.Close()
			if !resp.IsSuccessState() {
				return fmt.Errorf("ask: unexpected status %d", resp.StatusCode)
			}
			return summarizeStream(out, bufio.NewScanner(resp.Body))
		},
	}
	check.Flags().StringVar(&addr, "addr", "http://localhost:8001", "server base url")
	check.Flags().StringVar(&question, "question", checkQuestion, "question to stream")

	return check
}

// summarizeStream 按类型统计 SSE 事件，直到终止事件
func summarizeStream(out io.Writer, scanner *bufio.Scanner) error {
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	counts := map[string]int{}
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		kind := gjson.Get(payload, "type").String()
		switch {
		case gjson.Get(payload, "error").Exists():
			counts["error"]++
			fmt.Fprintf(out, "events: %v\n", counts)
			return fmt.Errorf("stream error: %s", gjson.Get(payload, "error").String())
		case gjson.Get(payload, "isComplete").Bool():
			counts["completion"]++
			fmt.Fprintf(out, "events: %v\n", counts)
			fmt.Fprintf(out, "answer: %d chars, %d references, follow-ups: %s\n",
				len([]rune(gjson.Get(payload, "totalContent").String())),
				len(gjson.Get(payload, "references").Array()),
				gjson.Get(payload, "followUpQuestions").Raw)
			return nil
		case kind == "":
			counts["content"]++
		default:
			counts[kind]++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "events: %v\n", counts)
	return fmt.Errorf("stream closed without a terminal event")
}
