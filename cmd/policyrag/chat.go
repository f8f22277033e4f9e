package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"policyrag/assistant"
	pmcp "policyrag/mcp"
)

// chatCmd runs an interactive loop over the assistant. History is kept here,
// in the client, and passed into every call.
func chatCmd(args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional, defaults to ~/.policyrag/config.yaml if present)")
	mcpAddr := flags.String("mcp-addr", "", "chat through a running MCP server instead of locally")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ask := func(ctx context.Context, question string, history []assistant.Turn) (*assistant.Answer, error) {
		out, err := mcpAsk(ctx, *mcpAddr, &pmcp.AskInput{Question: question, History: history})
		if err != nil {
			return nil, err
		}
		return &assistant.Answer{Text: out.Answer, Sources: out.Sources}, nil
	}
	if *mcpAddr == "" {
		svc := newService(loadServiceConfig(*configPath))
		defer func() { _ = svc.Close() }()
		ask = svc.Ask
	}

	session := uuid.New().String()
	fmt.Printf("policyrag chat session %s\n", session)
	fmt.Println(`Ask about the policy corpus; "exit" leaves, "reset" clears the history.`)

	var history []assistant.Turn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return
		case "reset":
			history = nil
			fmt.Println("history cleared")
			continue
		}
		answer, err := ask(ctx, question, history)
		if err != nil {
			log.Printf("ask: %v", err)
			continue
		}
		printAnswer(answer.Text, answer.Sources)
		history = append(history, assistant.Turn{Question: question, Answer: answer.Text})
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("chat: %v", err)
	}
}
