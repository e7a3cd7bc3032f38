// Quickstart: answer a question about a context that would blow a normal
// prompt window, using OpenRouter as the model provider.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	rlm "github.com/Protocol-Lattice/go-rlm"
	"github.com/Protocol-Lattice/go-rlm/pkg/models"
)

func main() {
	if os.Getenv("OPENROUTER_API_KEY") == "" {
		log.Fatalf("OPENROUTER_API_KEY is not set")
	}

	model := models.NewOpenRouterLLM("openai/gpt-4o-mini")
	engine, err := rlm.New(rlm.Options{Model: model})
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	var sb strings.Builder
	for i := 1; i <= 1000; i++ {
		fmt.Fprintf(&sb, "Document %d: This is filler content for document number %d.\n", i, i)
	}
	sb.WriteString("Document 1001: The secret code is AZURE-FALCON-42.\n")
	for i := 1002; i <= 2000; i++ {
		fmt.Fprintf(&sb, "Document %d: This is filler content for document number %d.\n", i, i)
	}

	result, err := engine.Completion(context.Background(), "What is the secret code mentioned in the documents?", sb.String())
	if err != nil {
		log.Fatalf("completion: %v", err)
	}

	fmt.Printf("Answer: %s\n", result.Answer)
	fmt.Printf("Iterations: %d\n", result.Iterations)
	fmt.Printf("Total model calls: %d\n", result.TotalCalls)
}
