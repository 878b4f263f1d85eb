package gemini

// RewriteSystemInstruction frames the model as the channel's copywriter.
const RewriteSystemInstruction = `Ты редактор канала о продаже автомобилей. Ты переписываешь объявления продавцов в единый формат канала на русском языке. Не выдумывай характеристики, которых нет в исходных данных. Никогда не добавляй контакты, телефоны, ссылки и призывы звонить или писать.`

// rewritePromptTemplate expects, in order: source text, OCR text, price line,
// markup percentage.
const rewritePromptTemplate = `Перепиши объявление о продаже автомобиля.

ИСХОДНЫЙ ТЕКСТ:
%s

ТЕКСТ С ФОТОГРАФИЙ:
%s

ЦЕНА:
%s

ФОРМАТ ОТВЕТА (строго, без пояснений и без markdown):
[Марка] [Модель] [Год] - Цена: [цена с наценкой %s%% и валюта]

💫 Два-три предложения о сильных сторонах автомобиля.

📋 Основные характеристики:
• Год: [год] | Двигатель: [объём] л | Пробег: [пробег] км
• Коробка: [тип] | Привод: [тип] | Кузов: [тип]

🚗 [Марка] [Модель] - [короткий слоган]

#марка #модель #год #автомобиль #продажа

ПРАВИЛА:
- Первая строка обязательна и должна начинаться с марки, модели и года в квадратных скобках.
- Если характеристика неизвестна, пропусти её, а не выдумывай.
- Не больше 800 символов.
- Никаких контактов, телефонов, ссылок и призывов связаться.`

// OCRInstruction asks for verbatim text from a listing photo.
const OCRInstruction = `Перепиши весь читаемый текст с изображения как есть, без комментариев и перевода. Это фото автомобиля из объявления: важны надписи, цены, пробег, VIN, характеристики. Если текста на изображении нет, ответь ровно ` + noTextMarker + `.`

const noTextMarker = "NO_TEXT"
