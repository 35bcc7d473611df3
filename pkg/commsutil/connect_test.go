package commsutil

import (
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const connectTestPrefix = "commsutil:connect_test"

func TestConnect_InvalidURL(t *testing.T) {
	nc, err := Connect("invalid://not-a-nats-server", "test-client")
	if err == nil {
		if nc != nil {
			nc.Close()
		}
		t.Fatalf("%s - expected error for invalid URL", connectTestPrefix)
	}
	if nc != nil {
		t.Errorf("%s - expected nil connection on error", connectTestPrefix)
	}
}

func TestConnect_AndDrain(t *testing.T) {
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", connectTestPrefix, err)
	}
	go ns.Start()
	defer ns.Shutdown()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatalf("%s - server not ready", connectTestPrefix)
	}

	nc, err := Connect(ns.ClientURL(), "connect-test", comms.NoEcho())
	if err != nil {
		t.Fatalf("%s - connect: %v", connectTestPrefix, err)
	}
	if !nc.IsConnected() {
		t.Fatalf("%s - expected connected client", connectTestPrefix)
	}

	Drain(nc, 2*time.Second)
	if !nc.IsClosed() {
		t.Errorf("%s - expected connection to be closed after drain", connectTestPrefix)
	}

	// Draining a closed connection is a no-op.
	Drain(nc, time.Second)
	Drain(nil, time.Second)
}
