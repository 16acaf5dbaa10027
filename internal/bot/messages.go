package bot

const (
	msgWelcome = `👋 Halo <b>%s</b>, selamat datang di DuweKu!

Kirim transaksi dengan bahasa sehari-hari, misalnya:
• <code>Beli kopi 20rb</code>
• <code>Gajian 5jt ke Bank BCA</code>
• foto struk belanja

Ketik /help untuk daftar perintah.`

	msgLinkInstructions = `👋 Selamat datang di DuweKu!

Akun Telegram ini belum terhubung. Buka dashboard DuweKu, pilih <b>Hubungkan Telegram</b>, lalu tekan link atau pindai QR yang muncul.`

	msgHelp = `📚 <b>Perintah DuweKu</b>

<b>Catat transaksi:</b>
• Kirim teks, misalnya <code>Makan siang 35rb</code>
• Kirim foto struk (boleh dengan keterangan)
• Kirim pesan suara

<b>Perintah:</b>
• /saldo - Saldo semua akun
• /transaksi - Transaksi terakhir
• /transfer - Transfer antar akun
• /gantisaldo - Ganti akun default
• /info - Info akun
• /help - Bantuan ini`

	msgLinked          = "✅ Telegram terhubung dengan akun <b>%s</b>! Sekarang kamu bisa mencatat transaksi di sini."
	msgInvalidLink     = "❌ Link tidak valid atau sudah kedaluwarsa. Minta link baru dari dashboard DuweKu."
	msgNotLinked       = "🔗 Akun Telegram ini belum terhubung. Buka dashboard DuweKu lalu pilih <b>Hubungkan Telegram</b>."
	msgNoWorkspace     = "❌ Kamu belum punya workspace. Buat workspace di dashboard DuweKu terlebih dahulu."
	msgUnknownCommand  = "Perintah tidak dikenal. Ketik /help untuk daftar perintah."
	msgInternalError   = "❌ Terjadi kesalahan. Silakan coba lagi."
	msgOperationFailed = "❌ Gagal memproses: %s"

	msgReading        = "⏳ Membaca pesan..."
	msgReadingReceipt = "⏳ Membaca struk..."
	msgListening      = "⏳ Mendengarkan pesan suara..."
	msgNoAccount      = "❌ Akun tidak ditemukan. Tambahkan akun di dashboard DuweKu terlebih dahulu."
	msgNotTransaction = "🤔 Sepertinya itu bukan transaksi. Coba tulis seperti <code>Beli kopi 20rb</code>."
	msgMalformed      = "⚠️ AI response format error. Coba ulangi dengan kalimat lain."
	msgTimeout        = "⌛ AI terlalu lama merespons. Silakan coba lagi."
	msgMissingKey     = "🔑 API key AI belum diatur. Atur di menu Pengaturan dashboard DuweKu."
	msgInvalidAmount  = "❌ Format jumlah tidak valid. Contoh: <code>50rb</code>, <code>1,5jt</code>, <code>250000</code>."
	msgUnknownDest    = "❓ Akun tujuan <b>%s</b> tidak ditemukan. Akun yang tersedia: %s. Tulis ulang dengan nama akun tujuan yang benar."
	msgVoiceDisabled  = "🎙 Pesan suara belum didukung. Silakan ketik transaksinya."
	msgEmptyVoice     = "🎙 Pesan suara tidak terdengar jelas. Silakan ulangi atau ketik transaksinya."
	msgDownloadFailed = "❌ Gagal mengunduh file dari Telegram. Silakan kirim ulang."

	msgAlreadyProcessed = "Transaksi sudah diproses."
	msgSaved            = "✅ Tersimpan!"
	msgDeleted          = "🗑 Dihapus."
	msgBatchDeleted     = "🗑 %d transaksi dihapus."
	msgSaveFailed       = "❌ Gagal menyimpan, transaksi belum dikonfirmasi: %s"
	msgUnknownAction    = "Aksi tidak dikenal."

	msgNeedTwoAccounts = "Transfer membutuhkan minimal dua akun aktif."
	msgPickFrom        = "🔁 <b>Transfer</b>\n\nPilih akun asal:"
	msgPickTo          = "🔁 <b>Transfer</b> dari <b>%s</b>\n\nPilih akun tujuan:"
	msgTransferRoute   = "🔁 <b>Transfer</b> <b>%s</b> ➜ <b>%s</b>"
	msgAskAmount       = "💬 Berapa jumlah transfer dari <b>%s</b> ke <b>%s</b>? Balas pesan ini dengan jumlahnya."
	msgDialogExpired   = "⌛ Sesi sudah kedaluwarsa. Ulangi dengan /transfer."
	msgAccountMissing  = "Akun tidak ditemukan."
	msgSameAccount     = "Akun tujuan harus berbeda dari akun asal."
	msgPickRetypeDest  = "🔁 Ubah ke transfer dari <b>%s</b>\n\nPilih akun tujuan:"

	msgPickDefault = "⭐ <b>Akun default</b>\n\nPilih akun yang dipakai saat akun tidak disebutkan:"
	msgDefaultSet  = "⭐ Akun default sekarang <b>%s</b>."
	msgNoHistory   = "Belum ada transaksi yang tersimpan."
)
