package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/fetch"
)

// RegisterSteps registers every step of the API suite.
func (tc *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a billparse server$`, tc.aBillparseServer)
	sc.Step(`^a bill document with (\d+) pages?$`, tc.aBillDocumentWithPages)
	sc.Step(`^page (\d+) is a "([^"]*)" page$`, tc.pageIsOfType)
	sc.Step(`^page (\d+) lists "([^"]*)" with amount ([\d.]+) and rate ([\d.]+)$`, tc.pageListsItem)
	sc.Step(`^the model call fails for page (\d+)$`, tc.theModelCallFailsForPage)
	sc.Step(`^the model answers page (\d+) with "([^"]*)"$`, tc.theModelAnswersPageWith)
	sc.Step(`^OCR fails on page (\d+)$`, tc.ocrFailsOnPage)
	sc.Step(`^the document URL returns status (\d+)$`, tc.theDocumentURLReturnsStatus)

	sc.Step(`^I GET "([^"]*)"$`, tc.iGET)
	sc.Step(`^I submit the document "([^"]*)"$`, tc.iSubmitTheDocument)
	sc.Step(`^I POST "([^"]*)" with body:$`, tc.iPOSTWithBody)

	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, tc.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should equal ([\d.]+)$`, tc.theJSONFieldShouldEqual)
	sc.Step(`^the response should have (\d+) pages? of line items$`, tc.theResponseShouldHavePages)
	sc.Step(`^response page "([^"]*)" should contain "([^"]*)" with amount ([\d.]+) and quantity ([\d.]+)$`,
		tc.responsePageShouldContain)
	sc.Step(`^the header "([^"]*)" should be "([^"]*)"$`, tc.theHeaderShouldBe)
}

func (tc *TestContext) aBillparseServer() error {
	return tc.start()
}

func (tc *TestContext) aBillDocumentWithPages(n int) error {
	tc.pages = make([]*pageSpec, n)
	for i := range tc.pages {
		tc.pages[i] = &pageSpec{pageType: bill.PageTypeBillDetail}
	}
	return nil
}

func (tc *TestContext) pageIsOfType(n int, pageType string) error {
	p, err := tc.page(n)
	if err != nil {
		return err
	}
	p.pageType = bill.PageType(pageType)
	return nil
}

func (tc *TestContext) pageListsItem(n int, name string, amount, rate float64) error {
	p, err := tc.page(n)
	if err != nil {
		return err
	}
	p.items = append(p.items, bill.Item{Name: name, Amount: amount, Rate: rate, Quantity: 1})
	return nil
}

func (tc *TestContext) theModelCallFailsForPage(n int) error {
	p, err := tc.page(n)
	if err != nil {
		return err
	}
	p.llmErr = errModelUnavailable
	return nil
}

func (tc *TestContext) theModelAnswersPageWith(n int, raw string) error {
	p, err := tc.page(n)
	if err != nil {
		return err
	}
	p.garbage = raw
	return nil
}

func (tc *TestContext) ocrFailsOnPage(n int) error {
	p, err := tc.page(n)
	if err != nil {
		return err
	}
	p.ocrErr = errors.New("recognizer crashed")
	return nil
}

func (tc *TestContext) theDocumentURLReturnsStatus(status int) error {
	tc.Fetcher.Err = &fetch.StatusError{URL: "https://bills.example/missing.pdf", StatusCode: status}
	return nil
}

func (tc *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastStatus = resp.StatusCode
	tc.LastBody = body
	tc.LastHeaders = map[string]string{}
	for k := range resp.Header {
		tc.LastHeaders[k] = resp.Header.Get(k)
	}
	tc.LastJSON = nil
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("response is not JSON: %w: %s", err, body)
		}
		tc.LastJSON = decoded
	}
	return nil
}

func (tc *TestContext) iGET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) iSubmitTheDocument(url string) error {
	body, _ := json.Marshal(map[string]string{"document": url})
	return tc.post("/extract-bill-data", body)
}

func (tc *TestContext) iPOSTWithBody(path string, body *godog.DocString) error {
	return tc.post(path, []byte(body.Content))
}

func (tc *TestContext) post(path string, body []byte) error {
	tc.sync()
	req, err := http.NewRequest(http.MethodPost, tc.Server.URL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) theResponseStatusShouldBe(status int) error {
	if tc.LastStatus != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.LastStatus, tc.LastBody)
	}
	return nil
}

// lookup resolves a dotted path such as "data.total_item_count".
func (tc *TestContext) lookup(path string) (any, error) {
	if tc.LastJSON == nil {
		return nil, fmt.Errorf("last response was not JSON: %s", tc.LastBody)
	}
	var cur any = tc.LastJSON
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q is not an object", path, part)
		}
		if cur, ok = obj[part]; !ok {
			return nil, fmt.Errorf("%s: field %q missing", path, part)
		}
	}
	return cur, nil
}

func (tc *TestContext) theJSONFieldShouldBe(path, want string) error {
	v, err := tc.lookup(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("%s: expected %q, got %q", path, want, got)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldEqual(path string, want float64) error {
	v, err := tc.lookup(path)
	if err != nil {
		return err
	}
	got, ok := v.(float64)
	if !ok {
		return fmt.Errorf("%s: expected a number, got %T", path, v)
	}
	if math.Abs(got-want) > 1e-6 {
		return fmt.Errorf("%s: expected %v, got %v", path, want, got)
	}
	return nil
}

func (tc *TestContext) responsePages() ([]any, error) {
	v, err := tc.lookup("data.pagewise_line_items")
	if err != nil {
		return nil, err
	}
	pages, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("pagewise_line_items is %T", v)
	}
	return pages, nil
}

func (tc *TestContext) theResponseShouldHavePages(n int) error {
	pages, err := tc.responsePages()
	if err != nil {
		return err
	}
	if len(pages) != n {
		return fmt.Errorf("expected %d pages, got %d", n, len(pages))
	}
	return nil
}

func (tc *TestContext) responsePageShouldContain(pageNo, name string, amount, quantity float64) error {
	pages, err := tc.responsePages()
	if err != nil {
		return err
	}
	for _, raw := range pages {
		page := raw.(map[string]any)
		if page["page_no"] != pageNo {
			continue
		}
		items, _ := page["bill_items"].([]any)
		for _, rawItem := range items {
			item := rawItem.(map[string]any)
			if item["item_name"] != name {
				continue
			}
			gotAmount, _ := item["item_amount"].(float64)
			gotQty, _ := item["item_quantity"].(float64)
			if math.Abs(gotAmount-amount) > 1e-6 || math.Abs(gotQty-quantity) > 1e-6 {
				return fmt.Errorf("item %q: expected amount %v quantity %v, got %v / %v",
					name, amount, quantity, gotAmount, gotQty)
			}
			return nil
		}
		return fmt.Errorf("page %s has no item %q: %v", pageNo, name, items)
	}
	return fmt.Errorf("no response page %s", pageNo)
}

func (tc *TestContext) theHeaderShouldBe(name, want string) error {
	got := tc.LastHeaders[http.CanonicalHeaderKey(name)]
	if got != want {
		return fmt.Errorf("header %s: expected %q, got %q", name, want, got)
	}
	return nil
}
