package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/product-lens/internal/client"
	"github.com/raine/product-lens/internal/imagesource"
)

func main() {
	baseURL := flag.String("server", client.DefaultBaseURL, "product-lens server URL")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-server URL] <image-path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	img, err := imagesource.NewFileLoader().LoadFromPath(ctx, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	c := client.NewClient(client.ClientOpts{BaseURL: *baseURL})
	resp, err := c.Analyze(ctx, img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error analyzing image: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Products) == 0 {
		fmt.Println("No products detected.")
	}
	for i, p := range resp.Products {
		fmt.Printf("%d. %s\n", i+1, p.Name)
		fmt.Printf("   %s\n", p.Description)
		if p.HasWarning {
			fmt.Printf("   WARNING: %s\n", p.WarningDetails)
		}
	}
	fmt.Println()
	fmt.Printf("Tokens:      %d in / %d out / %d total\n",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
	fmt.Printf("Cost:        $%.6f\n", resp.Usage.CostUSD)
}
