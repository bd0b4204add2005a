package devserver

// demoPDF is a minimal single-page PDF served from the demo document
// endpoint. It is intentionally tiny; the real backend serves the full
// Compliance Auditing Guidelines.
var demoPDF = []byte(`%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>
endobj
4 0 obj
<< /Length 62 >>
stream
BT /F1 12 Tf 72 720 Td (Compliance Auditing Guidelines) Tj ET
endstream
endobj
xref
0 5
0000000000 65535 f
0000000009 00000 n
0000000058 00000 n
0000000115 00000 n
0000000203 00000 n
trailer
<< /Size 5 /Root 1 0 R >>
startxref
316
%%EOF
`)
