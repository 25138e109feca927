package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/probe"
)

var (
	connStr  = flag.String("connection-string", os.Getenv("DEVICE_CONNECTION_STRING"), "device connection string")
	mac      = flag.String("mac", "DA:A1:19:00:00:01", "source MAC address of the synthetic probe request")
	ssid     = flag.String("ssid", "TestNetwork", "requested SSID")
	count    = flag.Int("count", 1, "number of events to send")
	delay    = flag.Duration("delay", time.Second, "delay between events")
	insecure = flag.Bool("insecure-http", false, "use plain HTTP")
)

func main() {
	flag.Parse()

	if *connStr == "" {
		log.Fatal("A device connection string is required (-connection-string or DEVICE_CONNECTION_STRING)")
	}

	conn, err := iothub.ParseConnectionString(*connStr)
	if err != nil {
		log.Fatalf("Invalid connection string: %v", err)
	}

	var opts []iothub.Option
	if *insecure {
		opts = append(opts, iothub.WithScheme("http"))
	}
	client, err := iothub.NewDeviceClient(conn, opts...)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	payload, err := probe.CreatePayload(*mac, *ssid)
	if err != nil {
		log.Fatalf("Failed to build payload: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*count)*(*delay)+30*time.Second)
	defer cancel()

	log.Printf("Sending %d event(s) as %s to %s", *count, client.DeviceID(), conn.HostName)
	for i := 0; i < *count; i++ {
		if i > 0 {
			time.Sleep(*delay)
		}
		if err := client.SendEvent(ctx, payload); err != nil {
			log.Fatalf("Send %d failed: %v", i+1, err)
		}
		log.Printf("Sent %s", payload)
	}
}
