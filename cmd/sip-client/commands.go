package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
)

const (
	defaultServer = "127.0.0.1:5060"
	defaultDomain = "free5gc.org"
	replyTimeout  = 2 * time.Second
)

var (
	flagServer string
	flagDomain string
)

// NewRootCmd builds the sip-client command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sip-client",
		Short:        "SIP user agent for the SMSC",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer, "SMSC address")
	root.PersistentFlags().StringVar(&flagDomain, "domain", defaultDomain, "SIP domain")

	root.AddCommand(
		newRegisterCmd(),
		newSendCmd(),
		newListenCmd(),
	)
	return root
}

func newRegisterCmd() *cobra.Command {
	var user, local string
	var stay bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user with the SMSC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverAddr, err := net.ResolveUDPAddr("udp", flagServer)
			if err != nil {
				return fmt.Errorf("bad --server: %w", err)
			}
			conn, err := bind(local)
			if err != nil {
				return err
			}
			defer conn.Close()

			aor := sipURI(user, flagDomain)
			via := conn.LocalAddr().String()
			req := protocol.NewRegisterRequest(aor, "sip:"+flagDomain, via, fmt.Sprintf("sip:%s@%s", user, via))

			fmt.Printf("📡 Sending REGISTER for %s...\n", aor)
			if _, err := conn.WriteToUDP(req.Encode(), serverAddr); err != nil {
				return fmt.Errorf("failed to send REGISTER: %w", err)
			}

			if err := printReply(conn); err != nil {
				return err
			}
			if stay {
				return listen(cmd.Context(), conn)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "sip-user", "", "SIP user, e.g. an MSISDN (required)")
	cmd.Flags().StringVar(&local, "local", "0.0.0.0:5060", "local address; replies and relayed messages arrive here")
	cmd.Flags().BoolVar(&stay, "listen", false, "keep listening on the registered socket")
	_ = cmd.MarkFlagRequired("sip-user")
	return cmd
}

func newSendCmd() *cobra.Command {
	var user, to, msg, local string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a SIP MESSAGE through the SMSC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverAddr, err := net.ResolveUDPAddr("udp", flagServer)
			if err != nil {
				return fmt.Errorf("bad --server: %w", err)
			}
			conn, err := bind(local)
			if err != nil {
				return err
			}
			defer conn.Close()

			target := sipURI(to, flagDomain)
			req := protocol.NewMessageRequest(protocol.MessageParams{
				Target:  target,
				ViaHost: conn.LocalAddr().String(),
				Branch:  protocol.NewBranch("msg"),
				From:    "<" + sipURI(user, flagDomain) + ">;tag=1",
				To:      "<" + target + ">",
				CallID:  protocol.NewCallID("msg"),
				Body:    msg,
			})

			raw, err := req.EncodeChecked()
			if err != nil {
				return err
			}

			fmt.Printf("📨 Sending MESSAGE to %s...\n", target)
			if _, err := conn.WriteToUDP(raw, serverAddr); err != nil {
				return fmt.Errorf("failed to send MESSAGE: %w", err)
			}
			return printReply(conn)
		},
	}
	cmd.Flags().StringVar(&user, "sip-user", "", "sender SIP user (required)")
	cmd.Flags().StringVar(&to, "to", "", "recipient SIP user (required)")
	cmd.Flags().StringVar(&msg, "msg", "", "message body (required)")
	cmd.Flags().StringVar(&local, "local", "0.0.0.0:0", "local address to send from")
	_ = cmd.MarkFlagRequired("sip-user")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("msg")
	return cmd
}

func newListenCmd() *cobra.Command {
	var local string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print incoming SIP packets and acknowledge MESSAGEs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := bind(local)
			if err != nil {
				return err
			}
			defer conn.Close()

			return listen(cmd.Context(), conn)
		},
	}
	cmd.Flags().StringVar(&local, "local", "0.0.0.0:5060", "local address to bind")
	return cmd
}

// sipURI turns a bare user into sip:user@domain
func sipURI(user, domain string) string {
	if strings.HasPrefix(user, "sip:") {
		return user
	}
	return fmt.Sprintf("sip:%s@%s", user, domain)
}

func bind(localAddr string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("bad --local %s: %w", localAddr, err)
	}
	return net.ListenUDP("udp", addr)
}

// printReply waits briefly for a single response
func printReply(conn *net.UDPConn) error {
	_ = conn.SetReadDeadline(time.Now().Add(replyTimeout))
	defer conn.SetReadDeadline(time.Time{})

	buffer := make([]byte, 4096)
	n, from, err := conn.ReadFromUDP(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			fmt.Println("⏳ Timeout waiting for response.")
			return nil
		}
		return err
	}

	fmt.Printf("✅ Received response from %s:\n%s\n", from, buffer[:n])
	return nil
}

// listen prints every datagram and answers MESSAGE requests with 200 OK
func listen(parent context.Context, conn *net.UDPConn) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Printf("👂 Listening on %s...\n", conn.LocalAddr())

	buffer := make([]byte, 4096)
	for {
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		fmt.Printf("\n[Received from %s]:\n%s\n", from, buffer[:n])

		pkt, err := protocol.Decode(buffer[:n])
		if err != nil {
			logger.Warn("Undecodable packet", zap.Stringer("from", from), zap.Error(err))
			continue
		}
		if pkt.Method != protocol.MethodMessage {
			continue
		}

		if _, err := conn.WriteToUDP(protocol.NewOKResponse(pkt).Encode(), from); err != nil {
			logger.Warn("Failed to acknowledge MESSAGE", zap.Error(err))
		}
	}
}
