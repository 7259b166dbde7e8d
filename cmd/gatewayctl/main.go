// gatewayctl queries a running gateway over its gRPC control plane.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"fluxgate/internal/transport"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
)

func main() {
	addr := flag.String("addr", "localhost:7070", "control plane address")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: gatewayctl [flags] ping|status\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cli, cc, err := transport.Dial(*addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch flag.Arg(0) {
	case "ping":
		out, err := cli.Ping(ctx, &emptypb.Empty{})
		if err != nil {
			log.Fatalf("ping: %v", err)
		}
		fmt.Println(out.GetValue())
	case "status":
		st, err := cli.ConsumerStatus(ctx, &emptypb.Empty{})
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		b, err := protojson.MarshalOptions{Multiline: true}.Marshal(st)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		fmt.Println(string(b))
	default:
		flag.Usage()
		os.Exit(2)
	}
}
