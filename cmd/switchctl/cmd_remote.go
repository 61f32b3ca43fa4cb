package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rafaeljc/switchboard/internal/dataapi"
)

func addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Data plane gRPC address (host:port); evaluates remotely when set")
	cmd.Flags().Duration("timeout", 5*time.Second, "Remote call timeout")
}

func remoteEval(cmd *cobra.Command, addr string) error {
	attrs, err := attrsFromFlags(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create client for %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	values, gen, err := dataapi.NewClient(conn).Evaluate(ctx, attrs)
	if err != nil {
		return fmt.Errorf("remote evaluation failed: %w", err)
	}
	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"generation": gen, "values": values})
	}
	writeValues(cmd.OutOrStdout(), values)
	return nil
}
