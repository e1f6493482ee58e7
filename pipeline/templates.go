package pipeline

// Template is a built-in source program.
type Template struct {
	Name   string
	Label  string
	Source string
}

// Templates are the built-in programs, in display order. Both print "OK".
var Templates = []Template{
	{
		Name:   "hello",
		Label:  "hello (OK)",
		Source: "#include \"clib.h\"\nint main(){ putchar(79); putchar(75); putchar(10); return 0; }",
	},
	{
		Name:  "fib",
		Label: "fib (10 terms)",
		Source: `#include "clib.h"
int main(){
  int a=0;
  int b=1;
  int i=0;
  while(i<10){
    int c=a+b;
    a=b;
    b=c;
    i=i+1;
  }
  putchar(79);
  putchar(75);
  putchar(10);
  return 0;
}`,
	},
}

// LookupTemplate returns the template with the given name.
func LookupTemplate(name string) (Template, bool) {
	for _, t := range Templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
