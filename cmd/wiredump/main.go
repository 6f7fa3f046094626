// Command wiredump decodes a captured protocol message and prints its
// structure. Input is a raw binary file, or a hex dump with -hex.
// Sender and recipient endpoints elided on the wire are filled from
// the -remote and -local flags, standing in for what the transport
// would observe.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net/netip"
	"os"
	"strings"

	"github.com/ZentaChain/kadwire/pkg/message"
	"github.com/ZentaChain/kadwire/pkg/wire"
)

var (
	hexInput = flag.Bool("hex", false, "Input is hex encoded (whitespace ignored)")
	remote   = flag.String("remote", "127.0.0.1:0", "Observed sender endpoint (ip:port)")
	local    = flag.String("local", "127.0.0.1:0", "Observed local endpoint (ip:port)")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [file]\n\nReads from stdin when no file is given.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	raw, err := readInput(flag.Arg(0))
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	if *hexInput {
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, string(raw))
		raw, err = hex.DecodeString(cleaned)
		if err != nil {
			log.Fatalf("decode hex: %v", err)
		}
	}

	remoteAP, err := netip.ParseAddrPort(*remote)
	if err != nil {
		log.Fatalf("parse -remote: %v", err)
	}
	localAP, err := netip.ParseAddrPort(*local)
	if err != nil {
		log.Fatalf("parse -local: %v", err)
	}

	buf := wire.NewBuffer()
	defer buf.Release()
	buf.Append(raw)

	d := message.NewDecoder()
	done, err := d.Decode(buf, remoteAP, localAP)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	if !done {
		log.Fatalf("decode: truncated message (%d undecoded bytes held)", buf.Readable())
	}
	if buf.Readable() > 0 {
		log.Printf("warning: %d trailing bytes after message", buf.Readable())
	}

	printMessage(d.Message())
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printMessage(m *message.Message) {
	fmt.Printf("id:        %#04x\n", m.ID())
	fmt.Printf("version:   %d\n", m.ProtocolVersion())
	fmt.Printf("command:   %d\n", m.Command())
	fmt.Printf("type:      %s\n", m.Type())
	fmt.Printf("sender:    %s\n", m.Sender())
	fmt.Printf("recipient: %s\n", m.Recipient())
	if m.SignHint() {
		fmt.Printf("signed:    verified=%v\n", m.Verified())
	}

	types := m.ContentTypes()
	counts := map[message.Content]int{}
	for slot := 0; slot < m.SlotsFilled(); slot++ {
		tag := types[slot]
		i := counts[tag]
		counts[tag]++
		fmt.Printf("slot %d:    %s %s\n", slot, tag, describe(m, tag, i))
	}
}

func describe(m *message.Message, tag message.Content, i int) string {
	switch tag {
	case message.ContentKey:
		k, _ := m.Key(i)
		return k.String()
	case message.ContentSetKeys640:
		c := m.KeyCollection(i)
		return fmt.Sprintf("%d keys (shared=%v)", c.Len(), c.Shared())
	case message.ContentMapKey640Data:
		dm := m.DataMap(i)
		return fmt.Sprintf("%d entries (shared=%v)", dm.Len(), dm.Shared())
	case message.ContentMapKey640Keys:
		return fmt.Sprintf("%d entries", m.KeyMap(i).Len())
	case message.ContentSetNeighbors:
		return fmt.Sprintf("%d neighbors", m.NeighborSet(i).Len())
	case message.ContentInteger:
		v, _ := m.Int(i)
		return fmt.Sprintf("%d", v)
	case message.ContentLong:
		v, _ := m.Long(i)
		return fmt.Sprintf("%d", v)
	case message.ContentByteBuffer:
		b, _ := m.Buffer(i)
		return fmt.Sprintf("%d bytes", len(b))
	case message.ContentBloomFilter:
		f := m.BloomFilter(i)
		return fmt.Sprintf("m=%d k=%d", f.M(), f.K())
	case message.ContentSetPeerSocket:
		s, _ := m.PeerSockets(i)
		return fmt.Sprintf("%d sockets", len(s))
	case message.ContentPublicKey, message.ContentPublicKeySignature:
		return "public key"
	}
	return ""
}
