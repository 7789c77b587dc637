package reconcile

import (
	"fmt"
	"strings"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/infra/chain"
	"github.com/ilsx/dashboard/internal/infra/subgraph"
)

// SubKind describes one event family within a reporting domain: the
// subgraph entity it lives in, its field names, and the chain-fallback
// event. Immutable, defined per domain at startup.
type SubKind struct {
	Entity       string
	Kind         domain.EventKind
	AddressField string // empty when the event carries no address
	AmountField  string // empty when the event carries no amount
	Event        chain.EventSpec
}

// DomainSpec describes one reporting domain's fetch. A domain may merge
// several sub-kinds (reserve: deposits+withdrawals, security: four
// compliance actions) into one series.
type DomainSpec struct {
	Name     string
	SubKinds []SubKind
}

// Document builds the domain's GraphQL query for a given schema version.
func (d DomainSpec) Document(s subgraph.Schema) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, sk := range d.SubKinds {
		fields := []string{"id"}
		if sk.AddressField != "" {
			fields = append(fields, sk.AddressField)
		}
		if sk.AmountField != "" {
			fields = append(fields, sk.AmountField)
		}
		fields = append(fields, s.TxHashField, s.TimestampField)
		fmt.Fprintf(&b, "  %s(orderBy: %s, orderDirection: desc, first: %d) { %s }\n",
			sk.Entity, s.TimestampField, domain.MaxSeriesLen, strings.Join(fields, " "))
	}
	b.WriteString("}")
	return b.String()
}

// The six reporting domains.
var (
	Mint = DomainSpec{Name: "mint", SubKinds: []SubKind{{
		Entity: "minteds", Kind: domain.KindMint, AddressField: "to", AmountField: "amount",
		Event: chain.EventSpec{Name: "Minted", Kind: domain.KindMint, HasAddress: true, HasAmount: true},
	}}}

	Burn = DomainSpec{Name: "burn", SubKinds: []SubKind{{
		Entity: "burneds", Kind: domain.KindBurn, AddressField: "from", AmountField: "amount",
		Event: chain.EventSpec{Name: "Burned", Kind: domain.KindBurn, HasAddress: true, HasAmount: true},
	}}}

	Rate = DomainSpec{Name: "rate", SubKinds: []SubKind{{
		Entity: "rateUpdateds", Kind: domain.KindRateUpdate, AmountField: "newRate",
		Event: chain.EventSpec{Name: "RateUpdated", Kind: domain.KindRateUpdate, HasAmount: true},
	}}}

	Reserve = DomainSpec{Name: "reserve", SubKinds: []SubKind{
		{
			Entity: "reserveFundeds", Kind: domain.KindReserveDeposit, AddressField: "from", AmountField: "amountEth",
			Event: chain.EventSpec{Name: "ReserveFunded", Kind: domain.KindReserveDeposit, HasAddress: true, HasAmount: true},
		},
		{
			Entity: "reserveWithdrawns", Kind: domain.KindReserveWithdraw, AddressField: "to", AmountField: "amountEth",
			Event: chain.EventSpec{Name: "ReserveWithdrawn", Kind: domain.KindReserveWithdraw, HasAddress: true, HasAmount: true},
		},
	}}

	Security = DomainSpec{Name: "security", SubKinds: []SubKind{
		{
			Entity: "blacklisteds", Kind: domain.KindBlacklist, AddressField: "wallet",
			Event: chain.EventSpec{Name: "Blacklisted", Kind: domain.KindBlacklist, HasAddress: true},
		},
		{
			Entity: "unblacklisteds", Kind: domain.KindUnblacklist, AddressField: "wallet",
			Event: chain.EventSpec{Name: "Unblacklisted", Kind: domain.KindUnblacklist, HasAddress: true},
		},
		{
			Entity: "frozens", Kind: domain.KindFreeze, AddressField: "wallet",
			Event: chain.EventSpec{Name: "Frozen", Kind: domain.KindFreeze, HasAddress: true},
		},
		{
			Entity: "unfrozens", Kind: domain.KindUnfreeze, AddressField: "wallet",
			Event: chain.EventSpec{Name: "Unfrozen", Kind: domain.KindUnfreeze, HasAddress: true},
		},
	}}
)

// Domains lists every reporting domain in display order.
func Domains() []DomainSpec {
	return []DomainSpec{Mint, Burn, Rate, Reserve, Security}
}

// DomainByName resolves a domain spec from its URL name.
func DomainByName(name string) (DomainSpec, bool) {
	for _, d := range Domains() {
		if d.Name == name {
			return d, true
		}
	}
	return DomainSpec{}, false
}
