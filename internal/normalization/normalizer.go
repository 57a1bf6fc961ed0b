// Package normalization turns raw feed messages into typed domain events.
package normalization

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"solana-dex-bot/internal/domain"
)

// Decoder converts the normalized payload of one variant into a domain event.
type Decoder func(payload []byte) (domain.DexEvent, error)

// Result is the outcome of normalizing one raw message.
// Event is never nil; failures are reported as *domain.FeedError.
type Result struct {
	Event   domain.DexEvent
	Latency *domain.LatencyInfo // nil when the message carries no upstream timestamp
}

// Normalizer decodes messages whose single top-level key names the variant.
type Normalizer struct {
	decoders map[string]Decoder // variant key -> decoder
}

// New creates a normalizer with all known variants registered.
func New() *Normalizer {
	n := &Normalizer{
		decoders: make(map[string]Decoder),
	}

	n.Register("PumpSwapBuy", decodePumpSwap(true))
	n.Register("PumpSwapSell", decodePumpSwap(false))
	n.Register("PumpFunTrade", decodePumpFunTrade)
	n.Register("PumpFunCreate", decodePumpFunCreate)
	n.Register("RaydiumAmmV4Swap", decodePoolSwap(domain.ProtocolRaydiumAMMV4))
	n.Register("RaydiumCpmmSwap", decodePoolSwap(domain.ProtocolRaydiumCPMM))
	n.Register("RaydiumClmmSwap", decodePoolSwap(domain.ProtocolRaydiumCLMM))
	n.Register("OrcaWhirlpoolSwap", decodePoolSwap(domain.ProtocolOrcaWhirlpool))
	n.Register("MeteoraDlmmSwap", decodePoolSwap(domain.ProtocolMeteoraDLMM))

	return n
}

// Register adds or replaces the decoder for a variant key.
func (n *Normalizer) Register(variant string, dec Decoder) {
	n.decoders[variant] = dec
}

// Variants returns the registered variant keys in sorted order.
func (n *Normalizer) Variants() []string {
	keys := make([]string, 0, len(n.decoders))
	for k := range n.decoders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize parses raw and returns the typed event.
// localRecvUs is the local receive time in microseconds.
func (n *Normalizer) Normalize(raw []byte, localRecvUs int64) Result {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return failure(domain.FeedErrorMalformedJSON, "", err.Error())
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return failure(domain.FeedErrorInvalidPayload, "", "message is not an object")
	}
	if len(obj) != 1 {
		return failure(domain.FeedErrorInvalidPayload, "", "message must have exactly one top-level key")
	}

	var variant string
	var body any
	for k, v := range obj {
		variant, body = k, v
	}

	decode, ok := n.decoders[variant]
	if !ok {
		return failure(domain.FeedErrorUnknownVariant, variant, "unrecognized variant")
	}

	payload, err := json.Marshal(normalizeValue(body, ""))
	if err != nil {
		return failure(domain.FeedErrorInvalidPayload, variant, err.Error())
	}

	ev, err := decode(payload)
	if err != nil {
		return failure(domain.FeedErrorInvalidPayload, variant, err.Error())
	}

	res := Result{Event: ev}
	if meta := ev.Meta(); meta != nil && meta.RecvUs > 0 {
		res.Latency = ComputeLatency(meta.RecvUs, localRecvUs)
	}
	return res
}

// ComputeLatency returns the relay-to-bot delay, clamped at zero for clock skew.
func ComputeLatency(upstreamRecvUs, localRecvUs int64) *domain.LatencyInfo {
	latency := localRecvUs - upstreamRecvUs
	if latency < 0 {
		latency = 0
	}
	return &domain.LatencyInfo{
		UpstreamRecvUs: upstreamRecvUs,
		LocalRecvUs:    localRecvUs,
		LatencyUs:      latency,
		LatencyMs:      math.Round(float64(latency)/10) / 100,
	}
}

func failure(reason domain.FeedErrorReason, variant, msg string) Result {
	return Result{Event: &domain.FeedError{Reason: reason, Variant: variant, Err: msg}}
}
