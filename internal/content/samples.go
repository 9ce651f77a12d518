package content

import "math/rand/v2"

// Sample is a starter document offered to a fresh editor.
type Sample struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Samples holds the starter documents. Math appears as raw sources the
// renderer and reconciliation pass pick up.
var Samples = []Sample{
	{
		Title: "Quadratic Formula",
		Content: `<h2>Solving quadratics</h2>` +
			`<p>For <span class="math-span" data-latex="ax^2+bx+c=0">ax^2+bx+c=0</span> with ` +
			`<span class="math-span" data-latex="a \neq 0">a \neq 0</span> the roots are</p>` +
			`<div class="tex">x = \frac{-b \pm \sqrt{b^2-4ac}}{2a}</div>`,
	},
	{
		Title: "Euler's Identity",
		Content: `<p>Often called the most beautiful equation:</p>` +
			`<div class="tex">e^{i\pi} + 1 = 0</div>` +
			`<p>It follows from <span class="tex">e^{i\theta} = \cos\theta + i\sin\theta</span>.</p>`,
	},
	{
		Title: "Pythagorean Theorem",
		Content: `<p>In a right triangle with legs <span class="tex">a</span>, <span class="tex">b</span> ` +
			`and hypotenuse <span class="tex">c</span>:</p>` +
			`<div class="tex">a^2 + b^2 = c^2</div>`,
	},
	{
		Title: "Gaussian Integral",
		Content: `<p>The area under the bell curve:</p>` +
			`<div class="tex">\int_{-\infty}^{\infty} e^{-x^2}\,dx = \sqrt{\pi}</div>`,
	},
	{
		Title: "Basel Problem",
		Content: `<p>Euler showed that</p>` +
			`<div class="tex">\sum_{n=1}^{\infty} \frac{1}{n^2} = \frac{\pi^2}{6}</div>`,
	},
}

// RandomSample picks a starter document. A nil rnd uses the global source.
func RandomSample(rnd *rand.Rand) Sample {
	if rnd == nil {
		return Samples[rand.IntN(len(Samples))]
	}
	return Samples[rnd.IntN(len(Samples))]
}
