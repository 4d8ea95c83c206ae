package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PCAPConfig configures a capture replay.
type PCAPConfig struct {
	Path string
	// Port filters UDP packets by destination port; 0 accepts any port.
	Port int
	// RealTime paces replay by the capture timestamps.
	RealTime bool
	// Speed scales real-time pacing; values <= 0 mean 1.
	Speed float64
}

// PCAPStats summarises one replay.
type PCAPStats struct {
	Packets   int
	Chunks    int
	Malformed int
	Frames    int
}

// ReplayPCAP reads a classic pcap file and feeds every matching UDP payload
// to asm. It returns at end of file or when ctx is cancelled.
func ReplayPCAP(ctx context.Context, cfg PCAPConfig, asm *FrameAssembler) (PCAPStats, error) {
	var stats PCAPStats
	f, err := os.Open(cfg.Path)
	if err != nil {
		return stats, fmt.Errorf("failed to open PCAP file %s: %w", cfg.Path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return stats, fmt.Errorf("failed to read PCAP header %s: %w", cfg.Path, err)
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}

	started := time.Now()
	var prev time.Time
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("[PCAPSource] stopping after %d packets: %v", stats.Packets, err)
			return stats, err
		}
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("[PCAPSource] replay of %s complete: %d packets, %d frames in %v",
				cfg.Path, stats.Packets, stats.Frames, time.Since(started))
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		if cfg.RealTime && !prev.IsZero() {
			if gap := ci.Timestamp.Sub(prev); gap > 0 {
				if err := sleepCtx(ctx, time.Duration(float64(gap)/speed)); err != nil {
					return stats, err
				}
			}
		}
		prev = ci.Timestamp

		payload, ok := udpPayload(gopacket.NewPacket(data, r.LinkType(), gopacket.Default), cfg.Port)
		if !ok {
			continue
		}
		stats.Chunks++
		complete, err := asm.AddPacket(payload)
		if err != nil {
			stats.Malformed++
			monitoring.Logf("[PCAPSource] packet %d: %v", stats.Packets, err)
			continue
		}
		if complete {
			stats.Frames++
		}
	}
}

func udpPayload(packet gopacket.Packet, port int) ([]byte, bool) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, false
	}
	if port > 0 && int(udp.DstPort) != port {
		return nil, false
	}
	return udp.Payload, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
