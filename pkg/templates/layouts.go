package templates

const shopIndex = `<!doctype html>
<html lang="uk">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Name}} — магазин</title>
  <link rel="stylesheet" href="assets/style.css">
</head>
<body>
  <header class="top">
    <h1>{{.Name}} — магазин</h1>
    {{- if .Domain}}
    <p class="domain">{{.Domain}}</p>
    {{- end}}
  </header>
  <main>
    <section id="catalog">
      <h2>Каталог</h2>
      <p class="placeholder">Товари з'являться тут.</p>
    </section>
    <section id="cart">
      <h2>Кошик</h2>
      <p class="placeholder">Кошик порожній.</p>
    </section>
  </main>
  <footer>
    <small>{{.Name}}</small>
  </footer>
  <script src="assets/app.js"></script>
</body>
</html>
`

const shopStyle = `* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, sans-serif; color: #1d1d1f; background: #fafafa; }
.top { padding: 24px; background: #111; color: #fff; }
.top h1 { margin: 0; font-size: 28px; }
.domain { margin: 4px 0 0; opacity: .7; }
main { display: grid; grid-template-columns: 2fr 1fr; gap: 24px; padding: 24px; }
section { background: #fff; border-radius: 12px; padding: 16px; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.placeholder { color: #888; }
footer { padding: 16px 24px; color: #888; }
@media (max-width: 720px) { main { grid-template-columns: 1fr; } }
`

const shopScript = `console.log("{{js .Name}}: магазин готовий");
`

const landingIndex = `<!doctype html>
<html lang="uk">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Name}}</title>
  <link rel="stylesheet" href="assets/style.css">
</head>
<body>
  <section class="hero">
    <h1>{{.Name}}</h1>
    <p class="lead">{{if .Domain}}{{.Domain}}{{else}}Ваш новий сайт{{end}}</p>
    <a class="cta" href="#contact">Зв'язатися з нами</a>
  </section>
  <section id="contact" class="contact">
    <h2>Контакти</h2>
    <p>Напишіть нам, і ми відповімо протягом дня.</p>
  </section>
  <footer>
    <small>&copy; <span id="year"></span> {{.Name}}</small>
  </footer>
  <script src="assets/app.js"></script>
</body>
</html>
`

const landingStyle = `* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, sans-serif; color: #222; }
.hero { min-height: 70vh; display: flex; flex-direction: column; align-items: center; justify-content: center; text-align: center; padding: 48px 24px; background: linear-gradient(135deg, #4f46e5, #06b6d4); color: #fff; }
.hero h1 { margin: 0 0 12px; font-size: 48px; }
.lead { margin: 0 0 24px; font-size: 20px; opacity: .9; }
.cta { display: inline-block; padding: 12px 28px; border-radius: 999px; background: #fff; color: #4f46e5; font-weight: 600; text-decoration: none; }
.contact { padding: 48px 24px; max-width: 720px; margin: 0 auto; }
footer { padding: 24px; text-align: center; color: #888; }
`

const landingScript = `document.getElementById("year").textContent = String(new Date().getFullYear());
console.log("{{js .Name}}: лендінг готовий");
`
