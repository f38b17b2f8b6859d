package browser

import (
	"fmt"
	"strings"
	"time"
)

// templateEscaper rewrites the characters that would end or interpolate the
// String.raw template literal into substitutions of constants defined by
// the script. It makes a single pass, so the inserted text is not rescanned.
var templateEscaper = strings.NewReplacer(
	"\\", "${BACKSLASH}",
	"`", "${BACKTICK}",
	"${", "${OPEN}",
)

// escapeTemplate makes html safe to embed between String.raw backticks.
func escapeTemplate(html string) string {
	return templateEscaper.Replace(html)
}

const setContentScript = `(async () => {
    const BACKSLASH = '\\';
    const BACKTICK = '` + "`" + `';
    const OPEN = '$' + '{';
    try {
        document.open();
        document.write(String.raw` + "`%s`" + `);
        document.close();

        const settled = (el) => new Promise((resolve) => {
            el.addEventListener('load', resolve, { once: true });
            el.addEventListener('error', resolve, { once: true });
        });

        const resourcesLoaded = async () => {
            if (document.readyState !== 'complete') {
                await new Promise((resolve) => window.addEventListener('load', resolve, { once: true }));
            }
            const images = Array.from(document.images)
                .filter((img) => !img.complete)
                .map(settled);
            const sheets = Array.from(document.querySelectorAll('link[rel~="stylesheet"]'))
                .filter((link) => !link.sheet)
                .map(settled);
            await Promise.all([...images, ...sheets]);
            await new Promise((resolve) => requestAnimationFrame(() => requestAnimationFrame(resolve)));
        };

        await Promise.race([
            resourcesLoaded(),
            new Promise((_, reject) => setTimeout(() => reject(new Error('Timeout')), %d)),
        ]);
        return 'Page loaded successfully';
    } catch (error) {
        throw new Error(` + "`Failed to set content: ${error.message}`" + `);
    }
})();`

// setContentExpression returns the Runtime.evaluate expression that replaces
// the document with html and resolves once it has rendered, or rejects after
// loadTimeout.
func setContentExpression(html string, loadTimeout time.Duration) string {
	return fmt.Sprintf(setContentScript, escapeTemplate(html), loadTimeout.Milliseconds())
}
