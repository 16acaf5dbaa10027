package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	domain "github.com/duweku/backend/internal/models"
	"github.com/duweku/backend/internal/services"
)

// Callback actions. Payloads are "<action>:<args>" and stay well under
// Telegram's 64-byte callback_data limit.
const (
	actionConfirm          = "confirm"
	actionDelete           = "delete"
	actionConfirmBatch     = "confirm_batch"
	actionDeleteBatch      = "delete_batch"
	actionSwitchToExpense  = "switch_to_expense"
	actionSwitchToTransfer = "switch_to_transfer"
	actionSetDefault       = "set_default"
	actionTransferFrom     = "tr_from"
	actionTransferTo       = "tr_to"
)

func payload(action string, args ...string) string {
	return action + ":" + strings.Join(args, ":")
}

func escape(s string) string {
	return html.EscapeString(s)
}

// formatRupiah renders 1234567.5 as "Rp 1.234.567,50".
func formatRupiah(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	whole := d.Truncate(0)

	digits := whole.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := sign + "Rp " + b.String()
	if frac := d.Sub(whole); !frac.IsZero() {
		out += fmt.Sprintf(",%02d", frac.Shift(2).IntPart())
	}
	return out
}

func typeLabel(txType string) string {
	switch txType {
	case domain.TransactionTypeIncome:
		return "💰 Pemasukan"
	case domain.TransactionTypeExpense:
		return "💸 Pengeluaran"
	case domain.TransactionTypeTransfer:
		return "🔁 Transfer"
	}
	return txType
}

// ledgerView names accounts and categories for rendering.
type ledgerView struct {
	accounts   map[string]domain.Account
	categories map[string]domain.Category
}

func newLedgerView(accounts []domain.Account, categories []domain.Category) ledgerView {
	v := ledgerView{
		accounts:   make(map[string]domain.Account, len(accounts)),
		categories: make(map[string]domain.Category, len(categories)),
	}
	for _, a := range accounts {
		v.accounts[a.ID] = a
	}
	for _, c := range categories {
		v.categories[c.ID] = c
	}
	return v
}

func (v ledgerView) accountName(id string) string {
	if a, ok := v.accounts[id]; ok {
		return a.Name
	}
	return "?"
}

func (v ledgerView) categoryName(id *string) string {
	if id == nil {
		return services.UncategorizedLabel
	}
	if c, ok := v.categories[*id]; ok {
		return c.Name
	}
	return services.UncategorizedLabel
}

func (v ledgerView) renderDetails(tx domain.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Tipe:</b> %s\n", typeLabel(tx.Type))
	fmt.Fprintf(&b, "<b>Jumlah:</b> %s\n", formatRupiah(tx.Amount))
	if desc := tx.DescriptionText(); desc != "" {
		fmt.Fprintf(&b, "<b>Keterangan:</b> %s\n", escape(desc))
	}
	if tx.Type == domain.TransactionTypeTransfer {
		fmt.Fprintf(&b, "<b>Dari:</b> %s\n", escape(v.accountName(tx.AccountID)))
		to := ""
		if tx.TransferToAccountID != nil {
			to = v.accountName(*tx.TransferToAccountID)
		}
		fmt.Fprintf(&b, "<b>Ke:</b> %s\n", escape(to))
	} else {
		fmt.Fprintf(&b, "<b>Kategori:</b> %s\n", escape(v.categoryName(tx.CategoryID)))
		fmt.Fprintf(&b, "<b>Akun:</b> %s\n", escape(v.accountName(tx.AccountID)))
	}
	fmt.Fprintf(&b, "<b>Tanggal:</b> %s", tx.Date.Format(domain.DateLayout))
	return b.String()
}

func (v ledgerView) renderPending(tx domain.Transaction) string {
	return "📝 <b>Cek transaksi berikut</b>\n\n" + v.renderDetails(tx)
}

func (v ledgerView) renderLine(i int, tx domain.Transaction) string {
	line := fmt.Sprintf("%d. %s %s", i+1, typeLabel(tx.Type), formatRupiah(tx.Amount))
	if desc := tx.DescriptionText(); desc != "" {
		line += " · " + escape(desc)
	}
	if tx.Type == domain.TransactionTypeTransfer && tx.TransferToAccountID != nil {
		line += fmt.Sprintf(" (%s ➜ %s)", escape(v.accountName(tx.AccountID)), escape(v.accountName(*tx.TransferToAccountID)))
	} else {
		line += fmt.Sprintf(" (%s, %s)", escape(v.categoryName(tx.CategoryID)), escape(v.accountName(tx.AccountID)))
	}
	return line
}

func (v ledgerView) renderBatch(txs []domain.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 <b>%d transaksi ditemukan</b>\n\n", len(txs))
	for i, tx := range txs {
		b.WriteString(v.renderLine(i, tx))
		b.WriteByte('\n')
	}
	b.WriteString("\nSimpan semua?")
	return b.String()
}

func (v ledgerView) renderSettlement(s *services.Settlement) string {
	var b strings.Builder
	b.WriteString(msgSaved)
	b.WriteString("\n\n")
	if len(s.Transactions) == 1 {
		b.WriteString(v.renderDetails(s.Transactions[0]))
	} else {
		for i, tx := range s.Transactions {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(v.renderLine(i, tx))
		}
	}

	if len(s.Balances) > 0 {
		b.WriteString("\n\n💰 <b>Saldo sekarang</b>")
		for _, bal := range s.Balances {
			fmt.Fprintf(&b, "\n• %s: %s", escape(bal.Name), formatRupiah(bal.Balance))
		}
	}
	for _, name := range s.NegativeAccounts {
		fmt.Fprintf(&b, "\n\n⚠️ Saldo <b>%s</b> sekarang minus.", escape(name))
	}
	return b.String()
}

func renderBalances(accounts []domain.Account) string {
	var b strings.Builder
	b.WriteString("💰 <b>Saldo akun</b>\n")
	total := decimal.Zero
	for _, a := range accounts {
		star := ""
		if a.IsDefault {
			star = " ⭐"
		}
		fmt.Fprintf(&b, "\n• %s%s: %s", escape(a.Name), star, formatRupiah(a.Balance))
		total = total.Add(a.Balance)
	}
	fmt.Fprintf(&b, "\n\n<b>Total:</b> %s", formatRupiah(total))
	return b.String()
}

func renderHistory(items []domain.TransactionSummary) string {
	var b strings.Builder
	b.WriteString("🧾 <b>Transaksi terakhir</b>\n")
	for _, it := range items {
		fmt.Fprintf(&b, "\n%s %s %s", it.Date.Format(domain.DateLayout), typeLabel(it.Type), formatRupiah(it.Amount))
		if desc := it.DescriptionText(); desc != "" {
			fmt.Fprintf(&b, " · %s", escape(desc))
		}
		if it.Type == domain.TransactionTypeTransfer {
			fmt.Fprintf(&b, " (%s ➜ %s)", escape(it.AccountName), escape(it.ToAccountName))
		} else {
			label := it.CategoryName
			if label == "" {
				label = services.UncategorizedLabel
			}
			fmt.Fprintf(&b, " (%s, %s)", escape(label), escape(it.AccountName))
		}
	}
	return b.String()
}

func pendingKeyboard(tx domain.Transaction) *models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{{
		{Text: "✅ Simpan", CallbackData: payload(actionConfirm, tx.ID)},
		{Text: "🗑 Hapus", CallbackData: payload(actionDelete, tx.ID)},
	}}

	switch tx.Type {
	case domain.TransactionTypeExpense:
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "🔁 Ubah ke Transfer", CallbackData: payload(actionSwitchToTransfer, tx.ID)},
		})
	case domain.TransactionTypeTransfer:
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "💸 Ubah ke Pengeluaran", CallbackData: payload(actionSwitchToExpense, tx.ID)},
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func batchKeyboard(batchID string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
		{Text: "✅ Simpan Semua", CallbackData: payload(actionConfirmBatch, batchID)},
		{Text: "🗑 Hapus Semua", CallbackData: payload(actionDeleteBatch, batchID)},
	}}}
}

// accountKeyboard lays out one button per account, two per row.
func accountKeyboard(accounts []domain.Account, label func(domain.Account) string, data func(domain.Account) string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, a := range accounts {
		row = append(row, models.InlineKeyboardButton{Text: label(a), CallbackData: data(a)})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func accountName(a domain.Account) string { return a.Name }
