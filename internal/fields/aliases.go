package fields

// DefaultAliases covers the export formats seen so far: marketplace order
// reports, storefront order exports, distributor statements, point-of-sale
// sheets and the legacy sales ledger.
func DefaultAliases() *Table {
	return NewTable(map[Field][]string{
		OrderID: {
			"Order ID", "Order No", "Order Number", "Order #", "OrderId",
			"Transaction ID", "Txn ID", "Invoice No", "Invoice Number", "Bill No",
			"Receipt No", "Reference",
		},
		ItemCode: {"Item Code", "SKU", "Seller SKU", "ASIN", "Product Code", "FSN", "Item ID"},
		ISBN:     {"ISBN", "ISBN13", "ISBN 13", "ISBN-13", "ISBN10", "EAN"},
		Date: {
			"Date", "Order Date", "Sale Date", "Invoice Date", "Transaction Date",
			"Purchase Date", "Bill Date", "Created At", "Order Created", "Txn Date",
		},
		Month: {"Month", "Sale Month", "Period Month"},
		Year:  {"Year", "Sale Year", "Period Year", "FY"},
		Title: {
			"Title", "Book Title", "Book Name", "Product Name", "Product Title",
			"Item Name", "Item", "Product", "Description", "Particulars",
		},
		Author:        {"Author", "Authors", "Author Name", "Writer"},
		Publisher:     {"Publisher", "Imprint", "Publisher Name", "Brand"},
		CategoryLabel: {"Category", "Genre", "Product Category", "Subject"},
		Quantity: {
			"Quantity", "Qty", "Qty.", "Units", "Units Sold", "No of Copies",
			"Copies", "Quantity Sold", "Pcs",
		},
		Rate: {"Rate", "MRP", "Price", "Unit Price", "Item Price", "Selling Price", "List Price"},
		Amount: {
			"Amount", "Total", "Total Amount", "Net Amount", "Gross Amount",
			"Invoice Amount", "Order Total", "Grand Total", "Sale Amount",
			"Item Total", "Value", "Net Sales",
		},
		Discount: {"Discount", "Discount Amount", "Promo Discount", "Trade Discount"},
		Tax:      {"Tax", "GST", "Tax Amount", "IGST", "VAT"},
		Shipping: {"Shipping", "Shipping Charges", "Shipping Fee", "Delivery Charges", "Freight"},
		PaymentMode: {
			"Payment Mode", "Payment Method", "Payment Type", "Mode of Payment",
			"Paid Via", "Payment",
		},
		OrderStatus: {"Status", "Order Status", "Fulfilment Status", "Fulfillment Status", "Delivery Status"},
		CustomerName: {
			"Customer Name", "Customer", "Buyer Name", "Buyer", "Name",
			"Billing Name", "Ship To Name", "Party Name",
		},
		CustomerEmail:  {"Email", "Customer Email", "Buyer Email", "E-mail", "Email ID"},
		CustomerMobile: {"Mobile", "Phone", "Customer Phone", "Mobile No", "Contact", "Contact No", "Phone Number"},
	})
}
