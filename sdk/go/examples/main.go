// Command examples shows the SDK against a running EnvioScout server.
//
//	go run ./sdk/go/examples -addr http://localhost:3001 "show latest blocks on base"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"EnvioScout/sdk/go/envioscout"
)

func main() {
	addr := flag.String("addr", "http://localhost:3001", "EnvioScout server address")
	async := flag.Bool("async", false, "submit the message as an asynchronous job")
	flag.Parse()

	message := strings.Join(flag.Args(), " ")
	if message == "" {
		message = "What is the current gas price on ethereum?"
	}

	client, err := envioscout.NewClient(*addr, nil)
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		log.Fatalf("server not healthy: %v", err)
	}

	if *async {
		job, err := client.SubmitJob(ctx, "", message)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("submitted job %s\n", job.ID)
		job, err = client.WaitForJob(ctx, job.ID, time.Second)
		if err != nil {
			log.Fatal(err)
		}
		if job.Result != nil {
			fmt.Println(job.Result.Response)
		} else {
			fmt.Printf("job %s: %s\n", job.Status, job.LastError)
		}
		return
	}

	reply, err := client.SendMessage(ctx, message)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s\n\n(tools: %s)\n", reply.Response, strings.Join(reply.ToolsUsed, ", "))

	stats, err := client.DashboardStats(ctx, "eth")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("eth: %d blocks, %.2f TPS, archive height %d\n", stats.Metrics.BlocksAnalyzed, stats.Metrics.TPS, stats.ArchiveHeight)
}
