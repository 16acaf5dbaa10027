package bot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	domain "github.com/duweku/backend/internal/models"
)

func TestFormatRupiah(t *testing.T) {
	tests := map[string]string{
		"0":          "Rp 0",
		"500":        "Rp 500",
		"20000":      "Rp 20.000",
		"1234567":    "Rp 1.234.567",
		"1500000.5":  "Rp 1.500.000,50",
		"99.05":      "Rp 99,05",
		"-150000":    "-Rp 150.000",
		"1000000000": "Rp 1.000.000.000",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatRupiah(decimal.RequireFromString(in)), in)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, args := parseCommand("/start abc.def", "DuweKuBot")
	assert.Equal(t, "start", cmd)
	assert.Equal(t, "abc.def", args)

	cmd, _ = parseCommand("/Saldo@duwekubot", "DuweKuBot")
	assert.Equal(t, "saldo", cmd)

	cmd, _ = parseCommand("/saldo@OtherBot", "DuweKuBot")
	assert.Empty(t, cmd)
}

func TestLedgerView_RenderPending(t *testing.T) {
	view := newLedgerView(
		[]domain.Account{{ID: "a", Name: "Tunai"}, {ID: "b", Name: "Bank <BCA>"}},
		[]domain.Category{{ID: "c", Name: "Transport"}},
	)
	to := "b"
	desc := "Tarik tunai"
	transfer := domain.Transaction{
		ID: "tx", AccountID: "a", TransferToAccountID: &to, Type: domain.TransactionTypeTransfer,
		Amount: decimal.NewFromInt(300000), Description: &desc, Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
	}

	text := view.renderPending(transfer)
	assert.Contains(t, text, "<b>Dari:</b> Tunai")
	assert.Contains(t, text, "<b>Ke:</b> Bank &lt;BCA&gt;")
	assert.Contains(t, text, "2024-02-03")
	assert.NotContains(t, text, "Kategori")

	income := domain.Transaction{ID: "tx2", AccountID: "a", Type: domain.TransactionTypeIncome, Amount: decimal.NewFromInt(1)}
	assert.Len(t, pendingKeyboard(income).InlineKeyboard, 1, "income has no type toggle")
}
