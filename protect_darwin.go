//go:build darwin

package detour

/*
#include <mach/mach.h>
#include <mach/mach_vm.h>

static kern_return_t detour_vm_region(mach_vm_address_t addr, vm_prot_t *prot) {
	mach_vm_address_t address = addr;
	mach_vm_size_t size = 0;
	vm_region_basic_info_data_64_t info;
	mach_msg_type_number_t infoCount = VM_REGION_BASIC_INFO_COUNT_64;
	memory_object_name_t object = MEMORY_OBJECT_NULL;

	kern_return_t kr = mach_vm_region(
		mach_task_self(),
		&address,
		&size,
		VM_REGION_BASIC_INFO_64,
		(vm_region_info_t)&info,
		&infoCount,
		&object
	);
	if (kr == KERN_SUCCESS && address > addr) {
		// mach_vm_region reported the next region above an unmapped addr.
		return KERN_INVALID_ADDRESS;
	}
	if (kr == KERN_SUCCESS) {
		*prot = info.protection;
	}
	return kr;
}
*/
import "C"

import "errors"

// platformGetProtection queries mach_vm_region, the macOS "mapped
// regions" inventory named in §4.E.
func platformGetProtection(addr uintptr) (Protection, error) {
	var prot C.vm_prot_t
	kr := C.detour_vm_region(C.mach_vm_address_t(addr), &prot)
	if kr != C.KERN_SUCCESS {
		return Protection{}, errors.New("detour: mach_vm_region failed")
	}
	p := Protection{
		Read:    prot&C.VM_PROT_READ != 0,
		Write:   prot&C.VM_PROT_WRITE != 0,
		Execute: prot&C.VM_PROT_EXECUTE != 0,
	}
	if p.isZero() {
		return p, errNotMapped
	}
	return p, nil
}

var errNotMapped = errors.New("detour: address is not mapped")

func platformSetProtection(addr, length uintptr, prot Protection) error {
	return posixMprotect(addr, length, prot)
}
