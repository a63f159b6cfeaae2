// =============================================================================
// satrag 主入口
// =============================================================================
// 判例检索增强生成引擎的命令行入口
//
// 使用方法:
//
//	satrag query "termination notice dispute"   # 对话式案例问答
//	satrag arguments --content-file case.txt    # 生成法律论点
//	satrag migrate up                           # 运行数据库迁移
//	satrag version                              # 显示版本信息
// =============================================================================
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/satdecisions/satrag/generation"
	"github.com/satdecisions/satrag/rag"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "query":
		runQuery(os.Args[2:])
	case "arguments":
		runArguments(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 💬 query 命令
// =============================================================================

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	conversationID := fs.String("conversation", "", "Conversation id for follow-up questions")
	noStream := fs.Bool("no-stream", false, "Disable streaming output")
	fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: satrag query [options] <question>")
		os.Exit(1)
	}

	eng, err := newEngine(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx := signalContext()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var onChunk func(string)
	streaming := eng.cfg.LLM.EnableStreaming && !*noStream
	if streaming {
		onChunk = func(text string) {
			out.WriteString(text)
			out.Flush()
		}
	}

	resp := eng.chat.Respond(ctx, chatRequest(question, *conversationID), onChunk)
	if !streaming {
		out.WriteString(resp.Answer)
	}
	out.WriteString("\n")
	out.Flush()

	fmt.Fprintf(os.Stderr, "\n[conversation: %s, classified: %s (%.2f)]\n",
		resp.ConversationID, resp.Classification.Type, resp.Classification.Confidence)
}

// =============================================================================
// ⚖️ arguments 命令
// =============================================================================

func runArguments(args []string) {
	fs := flag.NewFlagSet("arguments", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	contentFile := fs.String("content-file", "", "File containing the case content")
	content := fs.String("content", "", "Case content (inline)")
	topic := fs.String("topic", "", "Case topic")
	model := fs.String("model", "", "Override the generation model")
	singleCall := fs.Bool("single-call", false, "Use single-call reasoning instead of multi-step")
	legacy := fs.Bool("legacy-steps", false, "Use the five-step legacy reasoning chain")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	fs.Parse(args)

	caseContent := *content
	if *contentFile != "" {
		data, err := os.ReadFile(*contentFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read content file: %v\n", err)
			os.Exit(1)
		}
		caseContent = string(data)
	}
	if strings.TrimSpace(caseContent) == "" {
		fmt.Fprintln(os.Stderr, "Usage: satrag arguments --content-file <path> | --content <text> [options]")
		os.Exit(1)
	}

	eng, err := newEngine(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx := signalContext()

	items, err := eng.retrieveForContent(ctx, caseContent, *topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieval failed: %v\n", err)
		os.Exit(1)
	}

	req := generation.Request{
		CaseContent: caseContent,
		Topic:       *topic,
		Model:       *model,
		Items:       items,
	}
	if *legacy {
		req.Steps = generation.LegacyReasoningSteps
	}
	if !*asJSON {
		req.OnStep = func(step generation.ReasoningStep) {
			fmt.Fprintf(os.Stderr, "==== %s (%d in, %d out, %s) ====\n",
				step.Name, step.Metrics.InputTokens, step.Metrics.OutputTokens, step.Metrics.ExecutionTime)
		}
	}

	var result generation.GenerationResult
	if *singleCall {
		result = eng.orchestrator.GenerateSingleCall(ctx, req)
	} else {
		result = eng.orchestrator.GenerateWithReasoning(ctx, req)
	}

	if result.Error != "" {
		fmt.Fprintln(os.Stderr, result.Error)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(result.FinalOutput)
	fmt.Fprintf(os.Stderr, "\n[tokens: %d in / %d out, elapsed: %s]\n",
		result.TokenUsage.InputTokens, result.TokenUsage.OutputTokens, result.ExecutionTime)
}

// retrieveForContent 为论证生成做一次重排检索。
func (e *engine) retrieveForContent(ctx context.Context, content, topic string) ([]rag.Result, error) {
	vector, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed case content: %w", err)
	}

	documents := e.retrieval.RetrieveDocumentsReranked(ctx, vector, content, 4, topic)
	chunks := e.retrieval.RetrieveChunksReranked(ctx, vector, content, 4, 0, topic)

	items := make([]rag.Result, 0, len(documents)+len(chunks))
	items = append(items, documents...)
	items = append(items, chunks...)
	return items, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("satrag %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`satrag - Retrieval augmented generation for tribunal decisions

Usage:
  satrag <command> [options]

Commands:
  query      Ask a question over the decision corpus
  arguments  Generate legal arguments for a case
  migrate    Database migration commands
  version    Show version information
  help       Show this help message

Options for 'query':
  --config <path>        Path to configuration file (YAML)
  --conversation <id>    Continue an existing conversation
  --no-stream            Disable streaming output

Options for 'arguments':
  --config <path>        Path to configuration file (YAML)
  --content-file <path>  File containing the case content
  --content <text>       Case content (inline)
  --topic <topic>        Case topic
  --model <model>        Override the generation model
  --single-call          Single-call reasoning instead of multi-step
  --legacy-steps         Five-step legacy reasoning chain
  --json                 Print the full result as JSON

Examples:
  satrag query "find cases about defective termination notices"
  satrag arguments --content-file case.txt --topic tenancy
  satrag migrate up
  satrag version`)
}

// signalContext 返回随 SIGINT/SIGTERM 取消的 context。
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx
}
