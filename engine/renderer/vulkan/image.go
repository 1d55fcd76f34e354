package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

type ImageConfig struct {
	Width       uint32
	Height      uint32
	MipLevels   uint32
	Format      vk.Format
	Tiling      vk.ImageTiling
	Usage       vk.ImageUsageFlags
	MemoryFlags vk.MemoryPropertyFlags
	CreateView  bool
	ViewAspect  vk.ImageAspectFlags
}

type VulkanImage struct {
	Handle    vk.Image
	Memory    vk.DeviceMemory
	View      vk.ImageView
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format

	driver Driver
}

// ImageCreate creates a 2D image, backs it with memory and optionally a view.
func ImageCreate(ctx *VulkanContext, cfg ImageConfig) (*VulkanImage, error) {
	if cfg.MipLevels == 0 {
		cfg.MipLevels = 1
	}
	img := &VulkanImage{
		Width:     cfg.Width,
		Height:    cfg.Height,
		MipLevels: cfg.MipLevels,
		Format:    cfg.Format,
		driver:    ctx.Driver,
	}

	handle, err := ctx.Driver.CreateImage(&vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  cfg.Width,
			Height: cfg.Height,
			Depth:  1,
		},
		MipLevels:     cfg.MipLevels,
		ArrayLayers:   1,
		Format:        cfg.Format,
		Tiling:        cfg.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         cfg.Usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating image")
	}
	img.Handle = handle

	reqs := ctx.Driver.ImageMemoryRequirements(handle)
	memoryType, err := ctx.FindMemoryIndex(reqs.MemoryTypeBits, cfg.MemoryFlags)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	memory, err := ctx.Driver.AllocateMemory(&vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		img.Destroy()
		return nil, errors.Wrap(err, "allocating image memory")
	}
	img.Memory = memory

	if err := ctx.Driver.BindImageMemory(handle, memory, 0); err != nil {
		img.Destroy()
		return nil, err
	}

	if cfg.CreateView {
		if err := img.CreateView(cfg.ViewAspect); err != nil {
			img.Destroy()
			return nil, err
		}
	}
	return img, nil
}

func (img *VulkanImage) CreateView(aspect vk.ImageAspectFlags) error {
	view, err := CreateImageView(img.driver, img.Handle, img.Format, aspect, img.MipLevels)
	if err != nil {
		return err
	}
	img.View = view
	return nil
}

// CreateImageView creates a 2D view over every mip level of image.
func CreateImageView(driver Driver, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags, mipLevels uint32) (vk.ImageView, error) {
	view, err := driver.CreateImageView(&vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return vk.NullImageView, errors.Wrap(err, "creating image view")
	}
	return view, nil
}

func (img *VulkanImage) Destroy() {
	if img.View != vk.NullImageView {
		img.driver.DestroyImageView(img.View)
		img.View = vk.NullImageView
	}
	if img.Handle != vk.NullImage {
		img.driver.DestroyImage(img.Handle)
		img.Handle = vk.NullImage
	}
	if img.Memory != vk.NullDeviceMemory {
		img.driver.FreeMemory(img.Memory)
		img.Memory = vk.NullDeviceMemory
	}
}
