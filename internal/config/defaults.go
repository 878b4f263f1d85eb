package config

import (
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "LISTINGBOT"

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"database.path":             "listingbot.db",
	"database.source_retention": 30 * 24 * time.Hour,

	"gemini.model_name":     "gemini-2.0-flash",
	"gemini.ocr_model_name": "",
	"gemini.temperature":    0.7,
	"gemini.timeout":        2 * time.Minute,

	"cloudinary.folder": "",

	"ingest.limit":         10,
	"ingest.start_from_id": 0,
	"ingest.max_photos":    8,
	"ingest.temp_dir":      "temp_images",
	"ingest.read_limit":    1000,

	"pipeline.workers":        2,
	"pipeline.call_timeout":   time.Minute,
	"pipeline.markup_percent": 15.0,
	"pipeline.footer":         "Контакт: @VroomMarketManager",

	"retry.max_attempts":     3,
	"retry.base_delay":       time.Second,
	"retry.max_delay":        30 * time.Second,
	"retry.breaker_failures": 5,
	"retry.breaker_timeout":  30 * time.Second,

	"metrics.enabled": true,
	"metrics.addr":    ":9090",

	"scheduler.tasks.ingest.enabled":           true,
	"scheduler.tasks.ingest.schedule":          "0 */10 * * * *",
	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": "0 0 4 * * *",

	"messages.welcome":           "👋 Бот публикации объявлений запущен. Команды: /markup, /ingest, /stats, /getauto.",
	"messages.unauthorized":      "🚫 Доступ запрещён.",
	"messages.general_error":     "❌ Произошла ошибка. Попробуйте позже.",
	"messages.markup_current":    "Текущая наценка: %s%%",
	"messages.markup_updated":    "✅ Наценка установлена: %s%%",
	"messages.markup_invalid":    "⚠️ Укажите наценку числом от 0 до 500, например: /markup 15",
	"messages.ingest_started":    "⏳ Обработка новых объявлений запущена.",
	"messages.ingest_busy":       "⏳ Обработка уже идёт, дождитесь завершения.",
	"messages.ingest_done":       "✅ Готово: опубликовано %d, дубликатов %d, ошибок %d, отменено %d.",
	"messages.stats":             "📊 Объявлений: %d\nОпубликовано: %d\nОшибок: %d\nСообщений источника: %d",
	"messages.getauto_usage":     "⚠️ Использование: /getauto <ID>, например: /getauto 023-455",
	"messages.getauto_not_found": "❌ Объявление с ID %s не найдено.",
	"messages.getauto_no_photos": "⚠️ Фотографии временно недоступны",
}

// Secrets have no default, so they are bound explicitly for env lookup.
var envOnlyKeys = []string{
	"telegram.token",
	"telegram.admin_user_id",
	"telegram.source_chat_id",
	"telegram.target_chat_id",
	"gemini.api_key",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
