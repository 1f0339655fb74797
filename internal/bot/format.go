package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/weather-bot/internal/weather"
)

const (
	textWelcome       = "Привет! Добро пожаловать в бота! Выберите действие:"
	textAskLocation   = "Пожалуйста отправьте ваше местоположение"
	textHelp          = "Нажмите «" + ButtonCurrent + "» или «" + ButtonWeekly + "» и отправьте местоположение.\nМожно сразу указать город: /weather Москва или /week Сочи"
	textNoLocation    = "Не удалось определить город по вашему местоположению."
	textUnavailable   = "Сервис погоды временно недоступен. Попробуйте позже."
	textMalformed     = "Сервис погоды вернул некорректный ответ. Попробуйте позже."
	textGenericError  = "Ошибка при получении прогноза погоды."
	textCityNotFoundF = "Город «%s» не найден."
)

type unitLabels struct {
	temperature string
	wind        string
}

var labelsByUnits = map[string]unitLabels{
	"metric":   {temperature: "°C", wind: "м/с"},
	"imperial": {temperature: "°F", wind: "миль/ч"},
	"standard": {temperature: "K", wind: "м/с"},
}

func labelsFor(units string) unitLabels {
	if l, ok := labelsByUnits[units]; ok {
		return l
	}
	return labelsByUnits["metric"]
}

// FormatRecord renders a record as reply text.
func FormatRecord(rec weather.Record, units string) string {
	l := labelsFor(units)
	var b strings.Builder

	switch rec.Kind {
	case weather.KindWeekly:
		fmt.Fprintf(&b, "Город: %s\n\n", rec.City)
		for _, d := range rec.Days {
			fmt.Fprintf(&b, "Дата: %s\n", d.Date.Format("02.01.2006"))
			writeConditions(&b, d.Conditions, l)
			b.WriteString("\n\n")
		}
	default:
		fmt.Fprintf(&b, "Город: %s\n", rec.City)
		if rec.Current != nil {
			writeConditions(&b, *rec.Current, l)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeConditions(b *strings.Builder, c weather.Conditions, l unitLabels) {
	fmt.Fprintf(b, "Погода: %s\n", c.Description)
	fmt.Fprintf(b, "Температура: %.2f%s\n", c.Temperature, l.temperature)
	fmt.Fprintf(b, "Ощущается как: %.2f%s\n", c.FeelsLike, l.temperature)
	fmt.Fprintf(b, "Влажность: %d%%\n", c.Humidity)
	fmt.Fprintf(b, "Скорость ветра: %.2f %s", c.WindSpeed, l.wind)
}

// errorText maps a failure to the message shown to the user.
func errorText(err error, city string) string {
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		return fmt.Sprintf(textCityNotFoundF, city)
	case errors.Is(err, weather.ErrLocationNotResolved):
		return textNoLocation
	case errors.Is(err, weather.ErrProviderUnavailable):
		return textUnavailable
	case errors.Is(err, weather.ErrProviderMalformedResponse):
		return textMalformed
	default:
		return textGenericError
	}
}
