package nlfallback

// ReminderTerms, WeatherTerms and the cron-management word lists are the
// shared multilingual keyword lexicon used both by the intent router's
// immediate-action override and by this package's deterministic fallback
// parsing. Covers English, Indonesian, Malay, Thai, and Simplified Chinese.
var (
	ReminderTerms = []string{
		"remind", "reminder", "schedule", "alarm", "timer", "wake me",
		"ingatkan", "pengingat", "jadwalkan", "bangunkan", "set sekarang", "jadwal", "cron", "shift",
		"peringatan", "jadual", "tetapkan", "minit",
		"เตือน", "การเตือน", "ตั้งเตือน", "นาฬิกา",
		"提醒", "日程", "闹钟", "定时",
	}

	WeatherTerms = []string{
		"weather", "temperature", "forecast",
		"cuaca", "suhu", "temperatur", "prakiraan",
		"ramalan",
		"อากาศ", "อุณหภูมิ", "พยากรณ์",
		"天气", "气温", "温度", "预报",
	}

	CronManagementOps = []string{
		"list", "lihat", "show", "hapus", "delete", "remove", "edit", "ubah", "update",
		"senarai", "padam", "kemas kini",
		"รายการ", "แสดง", "ลบ", "แก้ไข", "อัปเดต",
		"列表", "查看", "显示", "删除", "移除", "编辑", "修改", "更新",
	}

	CronManagementTerms = []string{
		"reminder", "pengingat", "jadwal", "cron", "shift",
		"peringatan", "jadual",
		"เตือน", "ตาราง",
		"提醒", "日程", "计划",
	}

	StockTerms = []string{
		"stock", "saham", "ticker", "price", "harga", "market", "ihsg", "idx",
		"market cap", "dividend", "yield", "ratio", "pe ratio",
		"bursa", "efek", "obligasi", "surat berharga",
	}

	CryptoTerms = []string{
		"crypto", "cryptocurrency", "kripto", "bitcoin", "ethereum", "btc", "eth",
		"token", "coin", "blockchain", "wallet", "staking", "mining",
	}

	// ConfirmationTerms are short affirmative replies that, together with
	// the short-confirmation elevation rule, force is_complex=true when the
	// prior assistant turn offered an action.
	ConfirmationTerms = []string{
		"yes", "yep", "yeah", "ok", "okay", "sure", "go ahead", "do it", "confirm", "confirmed",
		"ya", "iya", "oke", "boleh", "lanjutkan", "lakukan", "silakan",
		"ใช่", "ตกลง", "ได้",
		"是", "好", "确定", "好的",
	}
)

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if containsFold(lower, term) {
			return true
		}
	}
	return false
}
