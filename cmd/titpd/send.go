package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/titpd/internal/config"
	"github.com/danmuck/titpd/internal/protocol/frame"
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/spf13/cobra"
)

type sendOptions struct {
	configPath string
	addr       string
	mti        string
	fields     []string
	header     string
	timeout    time.Duration
}

func newSendCmd() *cobra.Command {
	opts := sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message to a running server and print the response",
		Example: `  titpd send --mti 0100 --field 2=4111111111111111 --field 3=000000 --field 4=500
  titpd send --mti 0800 --field 3=920000 --header 02020`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file for codec switches and schema")
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "127.0.0.1:8080", "server address")
	cmd.Flags().StringVarP(&opts.mti, "mti", "m", "0800", "message type")
	cmd.Flags().StringArrayVarP(&opts.fields, "field", "f", nil, "field as n=value (binary fields in hex), repeatable")
	cmd.Flags().StringVar(&opts.header, "header", "", "5-digit legacy header to prepend")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "dial and read timeout")
	return cmd
}

func runSend(out io.Writer, opts sendOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}
	req, err := buildRequest(codec, opts.mti, opts.fields)
	if err != nil {
		return err
	}
	payload, err := codec.Encode(req)
	if err != nil {
		return err
	}
	if opts.header != "" {
		if !frame.HasLegacyHeader([]byte(opts.header)) || len(opts.header) != frame.LegacyHeaderLen {
			return fmt.Errorf("header must be %d digits, got %q", frame.LegacyHeaderLen, opts.header)
		}
		payload = append([]byte(opts.header), payload...)
	}

	conn, err := net.DialTimeout("tcp", opts.addr, opts.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(opts.timeout))

	if err := frame.WriteFrame(conn, payload); err != nil {
		return err
	}
	printMessage(out, "request", req)

	raw, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if errors.Is(err, frame.ErrClosed) {
		fmt.Fprintln(out, "connection closed without a response")
		return nil
	}
	if err != nil {
		return err
	}
	resp, err := codec.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	printMessage(out, "response", resp)
	return nil
}

func buildRequest(codec *iso8583.Codec, mti string, fields []string) (*iso8583.Message, error) {
	typ, err := iso8583.ParseMTI(mti)
	if err != nil {
		return nil, err
	}
	msg := codec.NewMessage(typ)
	for _, raw := range fields {
		n, text, err := parseFieldFlag(raw)
		if err != nil {
			return nil, err
		}
		v, err := codec.Value(n, text)
		if err != nil {
			return nil, err
		}
		if err := msg.Set(n, v); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// parseFieldFlag splits "n=value".
func parseFieldFlag(raw string) (int, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return 0, "", fmt.Errorf("field %q: expected n=value", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || n < iso8583.MinField || n > iso8583.MaxField {
		return 0, "", fmt.Errorf("field %q: number must be %d-%d", raw, iso8583.MinField, iso8583.MaxField)
	}
	return n, value, nil
}

func printMessage(out io.Writer, label string, m *iso8583.Message) {
	fmt.Fprintf(out, "%s %s\n", label, m.MTI())
	for _, n := range m.Numbers() {
		v, _ := m.Field(n)
		text := v.String()
		if n == 2 {
			text = iso8583.MaskPAN(text)
		}
		fmt.Fprintf(out, "  %3d %-7s %q\n", n, v.Type, text)
	}
}
