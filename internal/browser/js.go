package browser

// domHelpersJS defines the role, accessible-name and matching helpers that both
// drivers evaluate in the page. Role queries skip nodes that are not exposed to
// assistive technology (aria-hidden, display:none, visibility:hidden).
const domHelpersJS = `
const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
const matches = (actual, want, exact) => {
	actual = norm(actual);
	want = norm(want);
	if (exact) return actual === want;
	return actual.toLowerCase().includes(want.toLowerCase());
};
const roleOf = (el) => {
	const explicit = el.getAttribute('role');
	if (explicit && explicit.trim()) return explicit.trim().split(/\s+/)[0].toLowerCase();
	const tag = el.tagName.toLowerCase();
	const type = (el.getAttribute('type') || '').toLowerCase();
	switch (tag) {
	case 'button': return 'button';
	case 'a': case 'area': return el.hasAttribute('href') ? 'link' : '';
	case 'input':
		if (['button', 'submit', 'reset', 'image'].includes(type)) return 'button';
		if (type === 'checkbox') return 'checkbox';
		if (type === 'radio') return 'radio';
		if (type === 'range') return 'slider';
		if (type === 'number') return 'spinbutton';
		if (type === 'search') return el.hasAttribute('list') ? 'combobox' : 'searchbox';
		if (['', 'text', 'email', 'tel', 'url', 'password'].includes(type)) return el.hasAttribute('list') ? 'combobox' : 'textbox';
		return '';
	case 'textarea': return 'textbox';
	case 'select': return (el.multiple || el.size > 1) ? 'listbox' : 'combobox';
	case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
	case 'img': return el.getAttribute('alt') === '' ? 'presentation' : 'img';
	case 'ul': case 'ol': return 'list';
	case 'li': return 'listitem';
	case 'nav': return 'navigation';
	case 'main': return 'main';
	case 'table': return 'table';
	case 'tr': return 'row';
	case 'td': return 'cell';
	case 'th': return 'columnheader';
	case 'dialog': return 'dialog';
	case 'option': return 'option';
	}
	if (el.isContentEditable && el.parentElement && !el.parentElement.isContentEditable) return 'textbox';
	return '';
};
const nameFromContent = ['button', 'link', 'heading', 'cell', 'columnheader', 'row', 'listitem',
	'option', 'tab', 'menuitem', 'checkbox', 'radio', 'switch', 'treeitem', 'tooltip'];
const nameOf = (el) => {
	const labelledBy = el.getAttribute('aria-labelledby');
	if (labelledBy) {
		const text = labelledBy.split(/\s+/)
			.map((id) => document.getElementById(id))
			.filter(Boolean)
			.map((n) => n.textContent)
			.join(' ');
		if (norm(text)) return norm(text);
	}
	const label = el.getAttribute('aria-label');
	if (label && norm(label)) return norm(label);
	if (el.labels && el.labels.length) {
		return norm(Array.from(el.labels).map((l) => l.textContent).join(' '));
	}
	const tag = el.tagName.toLowerCase();
	const type = (el.getAttribute('type') || '').toLowerCase();
	if (tag === 'input' && ['button', 'submit', 'reset'].includes(type)) {
		return norm(el.value || (type === 'submit' ? 'Submit' : type === 'reset' ? 'Reset' : ''));
	}
	if (tag === 'img' || (tag === 'input' && type === 'image')) return norm(el.getAttribute('alt'));
	if (nameFromContent.includes(roleOf(el))) return norm(el.textContent);
	if (el.getAttribute('title')) return norm(el.getAttribute('title'));
	if (el.getAttribute('placeholder')) return norm(el.getAttribute('placeholder'));
	return '';
};
const exposed = (el) => {
	for (let n = el; n && n.nodeType === 1; n = n.parentElement) {
		if (n.getAttribute('aria-hidden') === 'true') return false;
		const style = getComputedStyle(n);
		if (style.display === 'none') return false;
	}
	return getComputedStyle(el).visibility !== 'hidden';
};
const skipTags = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'HEAD', 'TITLE', 'META', 'LINK'];
const textOf = (el) => norm(el.innerText !== undefined ? el.innerText : el.textContent);
const textMatches = (el, want, exact) => matches(textOf(el), want, exact) || matches(el.textContent, want, exact);
`

// findJS returns every element matching a selector (ignoring nth) as an array.
const findJS = `(kind, role, name, text, css, exact, hasText) => {` + domHelpersJS + `
	let found = [];
	if (kind === 'css') {
		found = Array.from(document.querySelectorAll(css));
	} else if (kind === 'role') {
		found = Array.from(document.querySelectorAll('*')).filter((el) =>
			roleOf(el) === role.toLowerCase() && exposed(el) && (!name || matches(nameOf(el), name, exact)));
	} else if (kind === 'text') {
		const all = Array.from(document.body ? document.body.querySelectorAll('*') : [])
			.filter((el) => !skipTags.includes(el.tagName));
		const hits = all.filter((el) => textMatches(el, text, exact));
		found = hits.filter((el) => !hits.some((other) => other !== el && el.contains(other)));
	}
	if (hasText) {
		found = found.filter((el) => textMatches(el, hasText, false));
	}
	return found;
}`

// elementStateJS takes the element as its only argument.
const elementStateJS = `(el) => {
	if (!el || !el.isConnected) {
		return { attached: false, visible: false, enabled: false, unobscured: false, x: 0, y: 0 };
	}
	const style = getComputedStyle(el);
	let rect = el.getBoundingClientRect();
	const visible = rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';
	const enabled = !el.disabled && el.getAttribute('aria-disabled') !== 'true' && !el.closest('fieldset[disabled]');
	let x = rect.left + rect.width / 2;
	let y = rect.top + rect.height / 2;
	let unobscured = false;
	if (visible) {
		if (x < 0 || y < 0 || x > window.innerWidth || y > window.innerHeight) {
			el.scrollIntoView({ block: 'center', inline: 'center' });
			rect = el.getBoundingClientRect();
			x = rect.left + rect.width / 2;
			y = rect.top + rect.height / 2;
		}
		const hit = document.elementFromPoint(x, y);
		unobscured = !!hit && (hit === el || el.contains(hit));
	}
	return { attached: true, visible, enabled, unobscured, x, y };
}`

// bodyTextJS yields null when the document has no body.
const bodyTextJS = `() => document.body ? document.body.innerText : null`

// bodyContentJS concatenates the body's text nodes the way textContent does,
// leaving out script and style bodies. Table cells come out unseparated.
const bodyContentJS = `() => {
	if (!document.body) return null;
	const skip = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE'];
	const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	let out = '';
	for (let n = walker.nextNode(); n; n = walker.nextNode()) {
		if (n.parentElement && skip.includes(n.parentElement.tagName)) continue;
		out += n.nodeValue;
	}
	return out;
}`

const titleJS = `() => document.title`

// WithHelpers wraps body in a no-argument function that can call the DOM
// helpers (norm, roleOf, nameOf, exposed, textOf, textMatches). The result is suitable for
// Page.Eval.
func WithHelpers(body string) string {
	return "() => {" + domHelpersJS + body + "\n}"
}
