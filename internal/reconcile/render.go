package reconcile

import (
	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/format"
)

// NoDataMessage is the locale-appropriate placeholder row text.
const NoDataMessage = "אין נתונים"

// Row is one display-ready record. A placeholder row carries only Message.
type Row struct {
	Date    string `json:"date,omitempty"`
	Action  string `json:"action,omitempty"`
	Address string `json:"address,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TxURL   string `json:"tx_url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Report is one domain's rendered refresh.
type Report struct {
	Domain string `json:"domain"`
	Source string `json:"source"`
	Rows   []Row  `json:"rows"`
}

var actionLabels = map[domain.EventKind]string{
	domain.KindReserveDeposit:  "Deposit",
	domain.KindReserveWithdraw: "Withdraw",
	domain.KindBlacklist:       "Blacklist",
	domain.KindUnblacklist:     "Unblacklist",
	domain.KindFreeze:          "Freeze",
	domain.KindUnfreeze:        "Unfreeze",
}

// RenderSeries formats a reconciled series for display. Every event here
// already carries a tx reference (Normalize dropped the rest), so each row
// gets an explorer link. An empty series renders one placeholder row.
func RenderSeries(name string, s domain.Series, explorerTxURL string) Report {
	report := Report{Domain: name, Source: string(s.Source)}

	if s.Empty() {
		report.Rows = []Row{{Message: NoDataMessage}}
		return report
	}

	report.Rows = make([]Row, 0, len(s.Events))
	for _, ev := range s.Events {
		row := Row{
			Date:    format.Date(ev.Timestamp),
			Action:  actionLabels[ev.Kind],
			Address: format.ShortAddress(ev.Address),
			Amount:  renderAmount(ev),
		}
		if ev.HasTx() {
			row.TxURL = explorerTxURL + ev.TxHash
		} else {
			row.TxURL = format.Placeholder
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

func renderAmount(ev domain.Event) string {
	switch ev.Kind {
	case domain.KindReserveDeposit, domain.KindReserveWithdraw:
		return format.Ether(ev.Amount)
	default:
		return format.Amount(ev.Amount)
	}
}

// StatsView is the display-ready aggregate snapshot.
type StatsView struct {
	TotalMinted  string `json:"total_minted"`
	TotalBurned  string `json:"total_burned"`
	Reserve      string `json:"reserve"`
	ReserveRatio string `json:"reserve_ratio"`
	Rate         string `json:"rate"`
	TotalSupply  string `json:"total_supply"`
	Holders      string `json:"holders"`
	Source       string `json:"source"`
}

// RenderStats formats the aggregate snapshot, degrading each missing field
// to a placeholder independently.
func RenderStats(s domain.Stats) StatsView {
	view := StatsView{
		TotalMinted: format.Amount(s.TotalMinted),
		TotalBurned: format.Amount(s.TotalBurned),
		Holders:     format.HolderCount(s.HolderCount, s.HoldersKnown),
		Source:      string(s.Source),
	}
	if s.ReserveBalance != nil {
		view.Reserve = format.Ether(s.ReserveBalance) + " ETH"
	} else {
		view.Reserve = format.Placeholder
	}
	if s.ReserveBalance != nil && s.TotalMinted != nil {
		view.ReserveRatio = format.Ratio(s.ReserveBalance, s.TotalMinted)
	} else {
		view.ReserveRatio = format.Placeholder
	}
	if s.CurrentRate != nil {
		view.Rate = format.Amount(s.CurrentRate) + " ILSX/ETH"
	} else {
		view.Rate = format.Placeholder
	}
	if s.TotalSupply != nil {
		view.TotalSupply = format.Amount(s.TotalSupply)
	} else {
		view.TotalSupply = format.Placeholder
	}
	return view
}
