// Package crawler maps the interactive surface of a page so suite drafts can
// refer to elements that actually exist.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/wait"
)

// Options configures the crawler behavior
type Options struct {
	// Settle bounds the wait for interactive elements to render.
	Settle wait.Options
}

// DefaultSettle is used when Options.Settle is zero.
var DefaultSettle = wait.Options{Timeout: 5 * time.Second, Interval: 200 * time.Millisecond}

// Crawl navigates page to url and extracts its structure.
func Crawl(ctx context.Context, page browser.Page, url string, opts Options) (*PageMap, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return ReCrawl(ctx, page, opts)
}

// ReCrawl extracts a fresh PageMap from the page's current state.
func ReCrawl(ctx context.Context, page browser.Page, opts Options) (*PageMap, error) {
	if opts.Settle == (wait.Options{}) {
		opts.Settle = DefaultSettle
	}
	if err := waitForInteractiveElements(ctx, page, opts.Settle); err != nil {
		return nil, err
	}

	raw, err := page.Eval(ctx, pageMapJS)
	if err != nil {
		return nil, fmt.Errorf("extract page map: %w", err)
	}
	var pm PageMap
	if err := json.Unmarshal([]byte(raw), &pm); err != nil {
		return nil, fmt.Errorf("decode page map: %w", err)
	}
	return &pm, nil
}

// waitForInteractiveElements polls until interactive elements appear. Pages
// that never render any are still mapped once the wait runs out.
func waitForInteractiveElements(ctx context.Context, page browser.Page, opts wait.Options) error {
	err := wait.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		out, err := page.Eval(ctx, interactiveCountJS)
		if err != nil {
			return false, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(out))
		return err == nil && n > 0, nil
	})
	if err != nil && !wait.IsTimeout(err) {
		return err
	}
	return nil
}

const interactiveCountJS = `() => {
	const nodes = document.querySelectorAll('button, [role="button"], input:not([type="hidden"]), textarea, a[href], select');
	let visible = 0;
	nodes.forEach(el => { if (el.offsetParent) visible++; });
	return String(visible);
}`

var pageMapJS = browser.WithHelpers(`
	function isValidCSSIdent(cls) {
		if (!cls) return false;
		if (/^-?[0-9]/.test(cls)) return false;
		return !/[.:#\[\]()>~+*\/\\]/.test(cls);
	}

	function cssPath(el) {
		if (el.id && isValidCSSIdent(el.id)) return '#' + el.id;
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		if (el.className && typeof el.className === 'string') {
			const classes = el.className.trim().split(/\s+/).filter(isValidCSSIdent).slice(0, 2);
			if (classes.length > 0) {
				const sel = el.tagName.toLowerCase() + '.' + classes.join('.');
				try {
					if (document.querySelectorAll(sel).length === 1) return sel;
				} catch (e) {}
			}
		}
		const parent = el.parentElement;
		if (parent && parent !== document.documentElement) {
			const index = Array.from(parent.children).indexOf(el) + 1;
			return cssPath(parent) + ' > ' + el.tagName.toLowerCase() + ':nth-child(' + index + ')';
		}
		return el.tagName.toLowerCase();
	}

	const isSPA = !!(window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot], #__next') ||
		window.__VUE__ || window.ng || document.querySelector('[ng-version], app-root') ||
		document.querySelector('[class*="svelte-"]'));

	const elements = [];
	const seen = new Set();
	const add = (el, type) => {
		if (!el.offsetParent) return;
		const css = cssPath(el);
		if (seen.has(css)) return;
		seen.add(css);
		elements.push({
			role: roleOf(el) || undefined,
			name: nameOf(el) || undefined,
			css: css,
			type: type,
			text: textOf(el).slice(0, 50) || undefined,
			placeholder: el.placeholder || undefined,
		});
	};

	document.querySelectorAll('button, [role="button"], input[type="submit"], input[type="button"]')
		.forEach(el => add(el, 'button'));
	document.querySelectorAll('input:not([type="hidden"]):not([type="submit"]):not([type="button"]):not([type="checkbox"]):not([type="radio"]), textarea, [contenteditable="true"]')
		.forEach(el => add(el, 'text'));
	document.querySelectorAll('a[href]').forEach(el => {
		const href = el.getAttribute('href');
		if (href.startsWith('#') || href.startsWith('javascript:')) return;
		add(el, 'link');
	});
	document.querySelectorAll('select').forEach(el => add(el, 'select'));
	document.querySelectorAll('input[type="checkbox"], input[type="radio"]').forEach(el => add(el, el.type));

	const navigation = [];
	const hrefs = new Set();
	document.querySelectorAll('nav a, header a, [role="navigation"] a').forEach(el => {
		if (!el.offsetParent) return;
		const href = el.getAttribute('href');
		if (!href || href === '#' || href.startsWith('javascript:') || hrefs.has(href)) return;
		hrefs.add(href);
		navigation.push({css: cssPath(el), text: textOf(el).slice(0, 30), href: href});
	});

	return JSON.stringify({
		url: window.location.href,
		title: document.title,
		elements: elements,
		navigation: navigation,
		isSPA: isSPA,
	});
`)
