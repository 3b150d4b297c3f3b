package dispatch

// extractionPrompt instructs vision models to return deals as a bare
// JSON array. Brochures in the evaluation corpus are predominantly
// German, so the field conventions are spelled out explicitly.
const extractionPrompt = `You are an expert at extracting product deals from supermarket brochure pages.

Analyze the image and extract EVERY advertised deal. Return ONLY a JSON array, no markdown, no explanations. Each element must have:
- "product_name": the product name as printed (string, required)
- "price": the advertised price, e.g. "1.99" (string or null)
- "discount": the discount as printed, e.g. "-20%" (string or null)
- "unit": the package size or unit, e.g. "450 g" (string or null)
- "original_price": the crossed-out previous price (string or null)
- "bbox": the bounding box of the deal tile as [x1, y1, x2, y2] in coordinates normalized to 0..1 (array or null)

Rules:
- Prices use a dot as decimal separator in the output even when the brochure prints a comma.
- Do not invent deals. If the page contains none, return [].
- "unit" is the package quantity (e.g. "450 g", "6 x 1 l"), never a per-kilogram comparison price.`
